package ai

import (
	"fmt"
	"time"
)

const instructionTemplate = `
You will receive some information about a flight deal. Your task is to extract the required information and return it. All information should be in English.
If there are layovers and a few flights within the deal, then group it (e.g. Warsaw - New York + New York - Los Angeles should be grouped into Warsaw - Los Angeles).

The input will be in 1-3 parts:
1. Post title (mandatory) - The title often contains a lot of the required columns. It usually starts with the airline(s) shortcuts. Then the destination is often described with IATA airport codes. Sometimes the month is described with roman numbers.
2. Post content (optional) - This is quite random, but can have some extra information.
3. Attached images (optional) - The post author could include some images with additional information.

Required information:
- airlines - a list of airlines that are mentioned in the title/post/images.
- from - the departure city/country (translated from the airport (IATA code)), e.g. "Warsaw, Poland"
- to - the arrival city/country (translated from the airport (IATA code)), e.g. "New York, USA"
- price - in PLN
- when (optional) - if the dates of the deal are provided, transform it into a "Month year" format, e.g. "January 2025". If the year is not specified, use the next occurrence of the month (today is %s).

The output MUST follow the following format:
` + "```json" + `
{
    "airlines": [array of strings],
    "from": string,
    "to": string,
    "price": string,
    "when": string
}
` + "```" + `
`

// Prompt is the fixed instruction block sent with every extraction request.
// It is built once at startup and never modified.
type Prompt struct {
	instructions string
}

// NewPrompt builds the instruction block. now anchors the rule for dates
// given without a year.
func NewPrompt(now time.Time) Prompt {
	return Prompt{instructions: fmt.Sprintf(instructionTemplate, now.Format("January 2006"))}
}

// Render appends a post's title and body to the instructions.
func (p Prompt) Render(title, content string) string {
	return p.instructions + fmt.Sprintf("Post title: %s\nPost content: %s", title, content)
}
