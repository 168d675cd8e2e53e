package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/echolog/internal/memoservice"
	"github.com/starford/echolog/internal/parser"
)

// CreateMemoRequest is the request body for creating a memo.
type CreateMemoRequest = memoservice.CreateInput

// UpdateMemoRequest is the request body for a partial memo update.
type UpdateMemoRequest = memoservice.UpdateInput

// MemoListResponse is one page of recent memos.
type MemoListResponse = memoservice.Page

// SimilarSearchRequest is the request body for embedding search.
type SimilarSearchRequest struct {
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit"`
}

// Validate implements validation.Validatable.
func (r *SimilarSearchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Embedding, validation.Required),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(50)),
	)
}

// ContentRequest is the request body of the generation endpoints.
type ContentRequest struct {
	Content string `json:"content"`
}

// Validate implements validation.Validatable.
func (r *ContentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
	)
}

// SuggestionsRequest names the memos to group into suggestions.
type SuggestionsRequest struct {
	MemoIDs []string `json:"memo_ids"`
}

// Validate implements validation.Validatable.
func (r *SuggestionsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MemoIDs, validation.Length(0, 50), validation.Each(validation.Required)),
	)
}

// TitleResponse carries a generated title.
type TitleResponse struct {
	Title string `json:"title"`
}

// TagsResponse carries extracted tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// DateTimeResponse reports a date expression found in content.
type DateTimeResponse struct {
	HasDateTime bool       `json:"has_date_time"`
	DateTime    *time.Time `json:"datetime"`
	Original    *string    `json:"original"`
}

func newDateTimeResponse(dt parser.DateTime) DateTimeResponse {
	if !dt.Found {
		return DateTimeResponse{}
	}
	at := dt.At
	resp := DateTimeResponse{HasDateTime: true, DateTime: &at}
	if dt.Original != "" {
		orig := dt.Original
		resp.Original = &orig
	}
	return resp
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Message string `json:"message"`
}
