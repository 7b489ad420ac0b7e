package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

func TestRestructureTrimsResponse(t *testing.T) {
	gen := &fakeGenerator{textResponse: "\n  # Report\n\nBody  \n"}

	text, err := NewRestructurer(gen, "Restructure:", 0).Restructure(context.Background(), "merged")
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\nBody", text)
	assert.Equal(t, []string{"Restructure:"}, gen.textPrompts)
	assert.Equal(t, []string{"merged"}, gen.texts)
}

func TestRestructureKeepsRefusalWording(t *testing.T) {
	letter := "Dear Sir, I am unable to attend the meeting. As a large language model enthusiast, I cannot fulfill the role."
	gen := &fakeGenerator{textResponse: letter}

	text, err := NewRestructurer(gen, "p", 0).Restructure(context.Background(), "merged")
	require.NoError(t, err)
	assert.Equal(t, letter, text)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "markdown fence", in: "```markdown\n# Title\nBody\n```", want: "# Title\nBody"},
		{name: "text fence", in: "```text\nBody\n```", want: "Body"},
		{name: "bare fence", in: "```\nline\n```", want: "line"},
		{name: "no fence", in: "plain", want: "plain"},
		{name: "inner fence kept", in: "Intro\n```\ncode\n```", want: "Intro\n```\ncode\n```"},
		{name: "leading fence only", in: "```\ncode\n```\nOutro", want: "```\ncode\n```\nOutro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestRestructureFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "service error", gen: &fakeGenerator{textErr: errQuota}},
		{name: "empty response", gen: &fakeGenerator{textResponse: " \n "}},
		{name: "provider refusal", gen: &fakeGenerator{textErr: models.ErrRefused}},
		{name: "empty fenced response", gen: &fakeGenerator{textResponse: "```\n\n```"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := NewRestructurer(tt.gen, "p", 0).Restructure(context.Background(), "merged")
			assert.Empty(t, text)
			assert.ErrorIs(t, err, models.ErrRemoteService)

			var stageErr *models.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, models.StageRestructure, stageErr.Stage)
		})
	}
}
