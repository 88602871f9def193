package textsteps_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pipeline-services/internal/textsteps"
	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/registry"
)

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   string
		want string
	}{
		"empty":       {in: "", want: ""},
		"blank":       {in: " \t\n ", want: ""},
		"single word": {in: "hello", want: "hello"},
		"collapse":    {in: "  Hello \t\n  World  ", want: "Hello World"},
		"unicode":     {in: "a\u3000\u00a0b", want: "a b"},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, textsteps.NormalizeWhitespace(tc.in))
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := registry.New[string]()
	require.NoError(t, textsteps.Register(reg))
	assert.Equal(t, []string{"append_marker", "normalize_whitespace", "strip", "to_lower"}, reg.Names())
	assert.ErrorIs(t, textsteps.Register(reg), registry.ErrAlreadyRegistered)

	actions, err := reg.ResolveAll(textsteps.NameStrip, textsteps.NameNormalizeWhitespace,
		textsteps.NameToLower, textsteps.NameAppendMarker)
	require.NoError(t, err)

	b := pipeline.NewBuilder[string]("clean")
	for _, action := range actions {
		b = b.Main(action)
	}

	p, err := b.Build()
	require.NoError(t, err)

	got, err := p.Run(context.Background(), "  Hello   WORLD \n")
	require.NoError(t, err)
	assert.Equal(t, "hello world|", got)
}
