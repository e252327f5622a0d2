// Package retrieval 提供题材语料的 BM25 检索
package retrieval

import (
	"math"
	"sort"

	"storytune-api/internal/domain/entity"
	"storytune-api/pkg/metrics"
)

// Config 打分参数
type Config struct {
	// K1 词频饱和常数
	K1 float64
	// B 文档长度归一化系数
	B float64
}

// DefaultConfig 默认打分参数
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75}
}

// ScoredDoc 打分结果
type ScoredDoc struct {
	ID    string
	Score float64
}

// genreIndex 单个题材的倒排索引
// 统计量（文档频率、平均长度）只在题材内计算，不同题材互不影响。
type genreIndex struct {
	docIDs   []string
	docLen   map[string]int
	avgLen   float64
	postings map[string]map[string]int
}

// Index 按题材分片的 BM25 索引
// 启动时构建一次，之后只读。
type Index struct {
	k1     float64
	b      float64
	genres map[string]*genreIndex
}

// BuildIndex 从语料构建索引
func BuildIndex(docs []*entity.GenreRequirementDoc, cfg Config) *Index {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultConfig().K1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultConfig().B
	}

	idx := &Index{
		k1:     cfg.K1,
		b:      cfg.B,
		genres: make(map[string]*genreIndex),
	}

	for _, doc := range docs {
		gi, ok := idx.genres[doc.Genre]
		if !ok {
			gi = &genreIndex{
				docLen:   make(map[string]int),
				postings: make(map[string]map[string]int),
			}
			idx.genres[doc.Genre] = gi
		}

		tokens := Tokenize(doc.Content)
		gi.docIDs = append(gi.docIDs, doc.ID)
		gi.docLen[doc.ID] = len(tokens)
		for _, term := range tokens {
			if gi.postings[term] == nil {
				gi.postings[term] = make(map[string]int)
			}
			gi.postings[term][doc.ID]++
		}
	}

	for _, gi := range idx.genres {
		sort.Strings(gi.docIDs)
		total := 0
		for _, n := range gi.docLen {
			total += n
		}
		if len(gi.docIDs) > 0 {
			gi.avgLen = float64(total) / float64(len(gi.docIDs))
		}
	}

	return idx
}

// Search 在指定题材内检索
// 未知题材或空查询返回空切片；仅返回得分为正的文档，
// 按得分降序排列，同分按文档 ID 升序保证结果确定。
func (idx *Index) Search(query, genre string, topK int) []ScoredDoc {
	metrics.RetrievalQueriesTotal.WithLabelValues(genre).Inc()

	gi, ok := idx.genres[genre]
	if !ok || topK <= 0 {
		return []ScoredDoc{}
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return []ScoredDoc{}
	}

	// 查询内的重复词项只计一次
	seen := make(map[string]bool, len(terms))
	n := float64(len(gi.docIDs))
	scores := make(map[string]float64)

	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		docs, ok := gi.postings[term]
		if !ok {
			continue
		}

		df := float64(len(docs))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for docID, tf := range docs {
			norm := 1 - idx.b + idx.b*float64(gi.docLen[docID])/gi.avgLen
			scores[docID] += idf * float64(tf) * (idx.k1 + 1) / (float64(tf) + idx.k1*norm)
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		if score > 0 {
			result = append(result, ScoredDoc{ID: docID, Score: score})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > topK {
		result = result[:topK]
	}
	return result
}
