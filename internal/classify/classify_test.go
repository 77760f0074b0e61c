package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bencyrus/safeupload/internal/types"
)

func TestCategorizeKnownExtensions(t *testing.T) {
	for ext, want := range extensions {
		assert.Equal(t, want, Categorize("file"+ext), ext)
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		want types.Category
	}{
		{"photo.PNG", types.CategoryImage},
		{"clip.final.mp4", types.CategoryVideo},
		{"memo.M4A", types.CategoryVoice},
		{"notes.md", types.CategoryDocument},
		{"archive.zip", types.CategoryOther},
		{"README", types.CategoryOther},
		{"", types.CategoryOther},
		{".png", types.CategoryOther},
		{"..png", types.CategoryOther},
		{"uploads/.hidden.png", types.CategoryImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Categorize(tc.name))
		})
	}
}

var uuidPattern = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

func TestNewKey(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^image/`+uuidPattern+`\.JPG$`), NewKey("holiday.JPG"))
	assert.Regexp(t, regexp.MustCompile(`^txt/`+uuidPattern+`\.pdf$`), NewKey("cv.pdf"))
	assert.Regexp(t, regexp.MustCompile(`^other/`+uuidPattern+`$`), NewKey("Makefile"))
	assert.Regexp(t, regexp.MustCompile(`^other/`+uuidPattern+`$`), NewKey(".png"))
	assert.NotEqual(t, NewKey("a.png"), NewKey("a.png"))
}

func TestExt(t *testing.T) {
	cases := map[string]string{
		"photo.PNG":      ".PNG",
		"clip.final.mp4": ".mp4",
		".png":           "",
		"..png":          "",
		".hidden.png":    ".png",
		"dir.d/README":   "",
		"":               "",
	}
	for name, want := range cases {
		assert.Equal(t, want, Ext(name), name)
	}
}

func TestTextKey(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^txt/`+uuidPattern+`\.txt$`), TextKey())
}

func TestModerated(t *testing.T) {
	assert.True(t, types.CategoryImage.Moderated())
	assert.True(t, types.CategoryVoice.Moderated())
	assert.False(t, types.CategoryDocument.Moderated())
	assert.False(t, types.CategoryOther.Moderated())
}
