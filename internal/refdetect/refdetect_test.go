package refdetect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	t.Run("full url", func(t *testing.T) {
		refs := Detect("check out https://github.com/golang/go for details")
		assert.Equal(t, []string{"golang/go"}, refs)
	})

	t.Run("bare owner slash repo", func(t *testing.T) {
		refs := Detect("how does uber-go/zap compare?")
		assert.Equal(t, []string{"uber-go/zap"}, refs)
	})

	t.Run("url and bare mixed", func(t *testing.T) {
		refs := Detect("compare github.com/spf13/cobra with urfave/cli please")
		assert.Equal(t, []string{"spf13/cobra", "urfave/cli"}, refs)
	})

	t.Run("dedupes case-insensitively", func(t *testing.T) {
		refs := Detect("golang/go and GoLang/Go and github.com/golang/go")
		assert.Equal(t, []string{"golang/go"}, refs)
	})

	t.Run("git suffix and trailing punctuation trimmed", func(t *testing.T) {
		refs := Detect("clone https://github.com/golang/go.git now")
		assert.Equal(t, []string{"golang/go"}, refs)

		refs = Detect("I like rust-lang/rust.")
		assert.Equal(t, []string{"rust-lang/rust"}, refs)
	})

	t.Run("prose slashes are ignored", func(t *testing.T) {
		assert.Empty(t, Detect("pros and/cons of caching"))
		assert.Empty(t, Detect("served over http/2.0 today"))
		assert.Empty(t, Detect("what is trending today?"))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, Detect(""))
	})

	t.Run("caps at MaxReferences", func(t *testing.T) {
		text := ""
		for i := 0; i < MaxReferences+5; i++ {
			text += fmt.Sprintf("owner%d/repo%d ", i, i)
		}
		assert.Len(t, Detect(text), MaxReferences)
	})
}
