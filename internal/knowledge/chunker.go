package knowledge

import (
	"strings"
	"unicode/utf8"
)

// ChunkType 分块策略
type ChunkType string

const (
	ChunkDefault   ChunkType = "DEFAULT"
	ChunkRecursive ChunkType = "RECURSIVE_CHARACTER"
)

var recursiveSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker 文本分块器，长度按字符计算
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	kind         ChunkType
}

// NewChunker 创建分块器
func NewChunker(kind ChunkType, chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if kind == "" {
		kind = ChunkDefault
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
		kind:         kind,
	}
}

// Size 分块长度
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap 分块重叠长度
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split 将文本切分为多个chunk
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.kind == ChunkRecursive {
		return c.splitRecursive(text, recursiveSeparators)
	}
	return c.splitWindow(text)
}

// splitWindow 固定窗口滑动切分
func (c *Chunker) splitWindow(text string) []string {
	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitRecursive 依次尝试分隔符，把片段合并到不超过 chunkSize
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks, pending []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= c.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, c.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, c.splitWindow(piece)...)
		} else {
			chunks = append(chunks, c.splitRecursive(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, c.merge(pending, sep)...)
	}
	return chunks
}

// merge 合并小片段，相邻 chunk 保留不超过 chunkOverlap 的尾部片段
func (c *Chunker) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks, window []string
	total := 0
	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if len(window) > 0 && total+sepLen+n > c.chunkSize {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > c.chunkOverlap || total+sepLen+n > c.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, piece)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}
