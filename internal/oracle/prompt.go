package oracle

import (
	"fmt"
	"strings"
)

// DefaultNotFoundSentinel is used when no sentinel is configured.
const DefaultNotFoundSentinel = "NOT FOUND"

const promptTemplate = `Look carefully at this screenshot and find the exact position of the UI element described as %q.

Requirements:
1. The coordinates must be the centre point of the element.
2. Coordinates are relative to the image: values between 0 and 1, with 5 decimal places.
3. If the element is only partially visible or its label is slightly different, still give its position.

Reply strictly in this format:
x: <relative position>
y: <relative position>

If the element is not in the image, reply only with: %s

Do not add any other text.`

// BuildPrompt renders the locate prompt for target.
func BuildPrompt(target, sentinel string) string {
	if strings.TrimSpace(sentinel) == "" {
		sentinel = DefaultNotFoundSentinel
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(target), sentinel)
}
