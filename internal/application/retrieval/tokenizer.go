// Package retrieval 提供题材语料的 BM25 检索
package retrieval

import (
	"strings"
	"unicode"
)

// Tokenize 文本分词
// 拉丁字母与数字的连续串作为整词；汉字连续串切为二元组（单字串保留单字）。
// 其余字符视为分隔符。
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	runes := []rune(text)

	var tokens []string
	var word []rune
	var han []rune

	flushWord := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	flushHan := func() {
		if len(han) == 1 {
			tokens = append(tokens, string(han))
		} else {
			for i := 0; i+1 < len(han); i++ {
				tokens = append(tokens, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range runes {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if len(han) > 0 {
				flushHan()
			}
			word = append(word, r)
		default:
			flushWord()
			if len(han) > 0 {
				flushHan()
			}
		}
	}
	flushWord()
	if len(han) > 0 {
		flushHan()
	}

	return tokens
}
