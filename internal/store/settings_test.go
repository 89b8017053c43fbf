package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
)

func TestSettings_DefaultsSeeded(t *testing.T) {
	db := testDB(t)
	ss := NewSettingsStore(db)

	got, err := ss.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAISettings(), got)
}

func TestSettings_SaveAndReload(t *testing.T) {
	db := testDB(t)
	ss := NewSettingsStore(db)
	ctx := context.Background()

	want := domain.AISettings{
		Tone:          domain.ToneFriendly,
		Behaviour:     "Always greet the customer by name.",
		ContextMemory: "5",
		TimeoutHours:  4,
	}
	require.NoError(t, ss.Save(ctx, want))

	got, err := ss.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettings_SaveRejectsInvalid(t *testing.T) {
	db := testDB(t)
	ss := NewSettingsStore(db)
	ctx := context.Background()

	cases := []struct {
		name     string
		settings domain.AISettings
	}{
		{"bad tone", domain.AISettings{Tone: "Sarcastic", ContextMemory: "3", TimeoutHours: 2}},
		{"behaviour too long", domain.AISettings{
			Tone: domain.ToneProfessional, Behaviour: strings.Repeat("x", 501),
			ContextMemory: "3", TimeoutHours: 2}},
		{"bad memory", domain.AISettings{
			Tone: domain.ToneProfessional, ContextMemory: "7", TimeoutHours: 2}},
		{"timeout too long", domain.AISettings{
			Tone: domain.ToneProfessional, ContextMemory: "3", TimeoutHours: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ss.Save(ctx, tc.settings)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}

	// Nothing invalid should have been written.
	got, err := ss.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAISettings(), got)
}
