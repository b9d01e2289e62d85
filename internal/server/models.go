package server

// HTTPError is the uniform error body returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type IngestURLRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k,omitempty"` // 0 uses the configured default
}

type ChatResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	ChunkIDs  []string `json:"chunk_ids"`
	LatencyMS int64    `json:"latency_ms"`
	SessionID string   `json:"session_id"`
}

type CompareRequest struct {
	Document1 string `json:"document1"`
	Document2 string `json:"document2"`
	SessionID string `json:"session_id"`
}

type GeneratedTextResponse struct {
	Document string `json:"document,omitempty"`
	Text     string `json:"text"`
}

type SearchResultItem struct {
	ChunkID  string  `json:"chunk_id"`
	Document string  `json:"document"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}
