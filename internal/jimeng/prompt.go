package jimeng

import "fmt"

// PromptBuilder turns tool input into the prompt text sent to the image
// model and resolves an aspect-ratio selector into pixel dimensions. The
// two variants share the same signing and transport path; only templating
// and size tables differ.
type PromptBuilder interface {
	Build(input string) string
	Size(ratio string) (width, height int)
}

const DefaultRatio = "1:1"

// GeneralPrompt renders a plain description-to-image prompt.
type GeneralPrompt struct{}

func (GeneralPrompt) Build(description string) string {
	return fmt.Sprintf("%s，超高清画质，细节丰富，光影自然", description)
}

var generalSizes = map[string][2]int{
	"1:1":  {512, 512},
	"4:3":  {512, 384},
	"3:4":  {384, 512},
	"16:9": {512, 288},
	"9:16": {288, 512},
}

func (GeneralPrompt) Size(ratio string) (int, int) {
	return lookupSize(generalSizes, ratio)
}

// PosterPrompt renders a typographic prompt: the given text is meant to
// appear legibly on the generated image. Poster output uses larger base
// dimensions so rendered glyphs stay readable.
type PosterPrompt struct{}

func (PosterPrompt) Build(text string) string {
	return fmt.Sprintf("平面海报设计，画面中清晰呈现文字“%s”，文字排版美观，字体清晰可读，构图简洁", text)
}

var posterSizes = map[string][2]int{
	"1:1":  {768, 768},
	"4:3":  {768, 576},
	"3:4":  {576, 768},
	"16:9": {768, 432},
	"9:16": {432, 768},
}

func (PosterPrompt) Size(ratio string) (int, int) {
	return lookupSize(posterSizes, ratio)
}

// lookupSize falls back to the 1:1 entry for unknown ratios.
func lookupSize(table map[string][2]int, ratio string) (int, int) {
	size, ok := table[ratio]
	if !ok {
		size = table[DefaultRatio]
	}
	return size[0], size[1]
}
