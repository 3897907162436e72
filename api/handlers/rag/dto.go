package rag

import (
	ragpkg "ragservice/internal/rag"
	"ragservice/pkg/aiinterface"
)

// IndexTextRequest 文本索引请求
type IndexTextRequest struct {
	IndexName string `json:"index_name" example:"docs"`
	Text      string `json:"text" example:"Paris is the capital of France."`
	Force     bool   `json:"force"`
}

// QueryRequest 问答请求
type QueryRequest struct {
	IndexName string                `json:"index_name" example:"docs"`
	Question  string                `json:"question" example:"What is the capital of France?"`
	PreMsgs   []aiinterface.Message `json:"pre_msgs"`
}

// SearchRequest 检索请求
type SearchRequest struct {
	IndexName string `json:"index_name" example:"docs"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k"`
}

// CreateIndexRequest 创建索引请求
type CreateIndexRequest struct {
	IndexName string `json:"index_name" example:"docs"`
	Dims      int    `json:"dims" example:"768"`
}

// DeleteIndexRequest 删除索引请求
type DeleteIndexRequest struct {
	IndexName string `json:"index_name" example:"docs"`
}

// IndexResponse 索引结果
type IndexResponse struct {
	Message string              `json:"message"`
	Report  *ragpkg.IndexReport `json:"report,omitempty"`
}

// IndexFailedResponse 所有分块均失败
type IndexFailedResponse struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Report  *ragpkg.IndexReport `json:"report"`
}

// EnqueueResponse 异步索引已入队
type EnqueueResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// QueryResponse 问答结果
type QueryResponse struct {
	Response string `json:"response"`
}

// SearchResponse 检索结果
type SearchResponse struct {
	Results []ragpkg.SearchHit `json:"results"`
}

// ListIndexesResponse 索引列表
type ListIndexesResponse struct {
	Indexes []string `json:"indexes"`
}
