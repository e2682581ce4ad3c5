package router

import "github.com/khaothi-ai/khaothi/internal/domain"

// DefaultReadingPatterns returns the built-in passage-marker patterns. A hit
// means the answer is inside the question text and retrieval is skipped.
func DefaultReadingPatterns() []string {
	return []string{
		"đoạn văn",
		"bài đọc",
		"đoạn thông tin",
		"dựa vào đoạn",
		"context:",
		"passage:",
		"text:",
		`\[\d+\]`,
	}
}

// DefaultStemPatterns returns the built-in math-notation patterns.
func DefaultStemPatterns() []string {
	return []string{
		`\\int`,
		`\\sum`,
		`\\frac`,
		"tính",
		"giá trị",
		"hàm số",
		"phương trình",
		"tích phân",
		"đạo hàm",
		"lim",
		`\^`,
		"√",
	}
}

// DefaultCategoryMarkers returns the built-in subject-domain markers in
// their evaluation order.
func DefaultCategoryMarkers() []CategoryMarkers {
	return []CategoryMarkers{
		{
			Category: domain.ChunkTypeLaw,
			Markers:  []string{"luật", "nghị định", "thông tư", "pháp lệnh", "bộ luật"},
		},
		{
			Category: domain.ChunkTypeHistory,
			Markers:  []string{"lịch sử", "triều đại", "khởi nghĩa", "chiến dịch"},
		},
		{
			Category: domain.ChunkTypeGeography,
			Markers:  []string{"địa lý", "sông", "núi", "tỉnh", "đồng bằng"},
		},
		{
			Category: domain.ChunkTypeCulture,
			Markers:  []string{"văn hóa", "lễ hội", "di sản", "phong tục"},
		},
	}
}
