package tasks

// 任务类型
const (
	TypeIndexDocument = "rag:index_document"
)

// QueueRAG RAG 专用队列
const QueueRAG = "rag"

// IndexDocumentPayload 异步索引任务载荷
type IndexDocumentPayload struct {
	IndexName string `json:"index_name"`
	Text      string `json:"text"`
	Force     bool   `json:"force"`
	RequestID string `json:"request_id,omitempty"`
}
