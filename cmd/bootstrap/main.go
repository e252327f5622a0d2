package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"storytune-api/internal/config"
	"storytune-api/internal/domain/entity"
	"storytune-api/internal/infrastructure/persistence/postgres"
)

// genreDocSeed 题材要求语料种子条目
type genreDocSeed struct {
	ID      string `yaml:"id"`
	Genre   string `yaml:"genre"`
	Content string `yaml:"content"`
}

// musicItemSeed 曲库种子条目，特征按维度名书写
type musicItemSeed struct {
	ID       string             `yaml:"id"`
	Title    string             `yaml:"title"`
	Artist   string             `yaml:"artist"`
	Features map[string]float64 `yaml:"features"`
}

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化 PostgreSQL 并建表
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to initialize postgres: %v", err)
	}
	defer func() { _ = pgClient.Close() }()

	fmt.Println("Running migrations...")
	if err := pgClient.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 3. 装载题材要求语料
	docs, err := loadGenreDocs(filepath.Join(cfg.Bootstrap.SeedDir, "genre_docs.yaml"))
	if err != nil {
		log.Fatalf("failed to load genre doc seeds: %v", err)
	}
	if len(docs) > 0 {
		if err := postgres.NewGenreDocRepository(pgClient).UpsertBatch(ctx, docs); err != nil {
			log.Fatalf("failed to seed genre docs: %v", err)
		}
		fmt.Printf("Seeded %d genre requirement docs.\n", len(docs))
	}

	// 4. 装载音乐曲库
	items, err := loadMusicItems(filepath.Join(cfg.Bootstrap.SeedDir, "music_items.yaml"))
	if err != nil {
		log.Fatalf("failed to load music item seeds: %v", err)
	}
	if len(items) > 0 {
		if err := postgres.NewMusicRepository(pgClient).UpsertBatch(ctx, items); err != nil {
			log.Fatalf("failed to seed music items: %v", err)
		}
		fmt.Printf("Seeded %d music items.\n", len(items))
	}

	fmt.Println("Bootstrap completed successfully.")
}

// loadGenreDocs 读取题材语料种子文件，缺失时跳过
func loadGenreDocs(path string) ([]*entity.GenreRequirementDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("Seed file %s not found, skipping.\n", path)
			return nil, nil
		}
		return nil, err
	}

	var seeds []genreDocSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	docs := make([]*entity.GenreRequirementDoc, 0, len(seeds))
	for i, s := range seeds {
		if s.ID == "" || s.Genre == "" || s.Content == "" {
			return nil, fmt.Errorf("%s: entry %d missing id/genre/content", path, i)
		}
		docs = append(docs, &entity.GenreRequirementDoc{
			ID:      s.ID,
			Genre:   s.Genre,
			Content: s.Content,
		})
	}
	return docs, nil
}

// loadMusicItems 读取曲库种子文件，缺失时跳过
func loadMusicItems(path string) ([]*entity.MusicItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("Seed file %s not found, skipping.\n", path)
			return nil, nil
		}
		return nil, err
	}

	var seeds []musicItemSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	items := make([]*entity.MusicItem, 0, len(seeds))
	for i, s := range seeds {
		if s.ID == "" || s.Title == "" {
			return nil, fmt.Errorf("%s: entry %d missing id/title", path, i)
		}

		var features entity.FeatureVector
		for name, value := range s.Features {
			dim, ok := featureDim(name)
			if !ok {
				return nil, fmt.Errorf("%s: entry %d has unknown feature %q", path, i, name)
			}
			if value < 0 || value > 1 {
				return nil, fmt.Errorf("%s: entry %d feature %q out of [0,1]", path, i, name)
			}
			features[dim] = value
		}

		items = append(items, &entity.MusicItem{
			ID:       s.ID,
			Title:    s.Title,
			Artist:   s.Artist,
			Features: features,
		})
	}
	return items, nil
}

// featureDim 按维度名查下标
func featureDim(name string) (int, bool) {
	for i, n := range entity.FeatureNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
