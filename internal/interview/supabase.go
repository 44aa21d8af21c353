package interview

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore implements Store on top of the Supabase PostgREST API.
// Interviews live in the "interviews" table, conversation turns in
// "interview_messages".
type SupabaseStore struct {
	client *supabase.Client
}

type interviewRow struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Role          string `json:"role"`
	Description   string `json:"description"`
	CandidateName string `json:"candidate_name"`
	OwnerID       string `json:"owner_id"`
}

type messageRow struct {
	InterviewID string `json:"interview_id"`
	Role        string `json:"role"`
	Text        string `json:"text"`
}

// NewSupabaseStore constructs a store client using the service role key.
func NewSupabaseStore(url, serviceKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

func (s *SupabaseStore) Fetch(ctx context.Context, id string) (Details, error) {
	data, _, err := s.client.From("interviews").
		Select("id,status,role,description,candidate_name,owner_id", "", false).
		Eq("id", id).
		Single().
		Execute()
	if err != nil {
		return Details{}, fmt.Errorf("supabase: fetch interview %s: %w", id, err)
	}
	return decodeDetails(data)
}

func (s *SupabaseStore) SetStatus(ctx context.Context, id string, status Status) error {
	_, _, err := s.client.From("interviews").
		Update(map[string]any{"status": string(status)}, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: set status of %s to %s: %w", id, status, err)
	}
	return nil
}

func (s *SupabaseStore) AppendTurn(ctx context.Context, id, role, text string) error {
	row := messageRow{InterviewID: id, Role: role, Text: text}
	_, _, err := s.client.From("interview_messages").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("supabase: append %s turn for %s: %w", role, id, err)
	}
	return nil
}

func decodeDetails(data []byte) (Details, error) {
	var row interviewRow
	if err := json.Unmarshal(data, &row); err != nil {
		return Details{}, fmt.Errorf("supabase: decode interview row: %w", err)
	}
	return Details{
		ID:            row.ID,
		Status:        Status(row.Status),
		Role:          row.Role,
		Description:   row.Description,
		CandidateName: row.CandidateName,
		OwnerID:       row.OwnerID,
	}, nil
}
