package topics

import "fmt"

// Topic is a catalog entry describing one interview track. The prompt seeds
// the assistant persona for the whole interview.
type Topic struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	TitleAlt string `json:"titleAlt"`
	Image    string `json:"image"`
	ImageAlt string `json:"imageAlt"`
	Prompt   string `json:"-"`
}

const interviewerPrompt = `I want you to act as an interviewer. I will be the candidate and you will ask me the interview questions for the position %s developer. I want you to only reply as the interviewer. Do not write all the conservation at once. I want you to only do the interview with me. Ask me the questions and wait for my answers. Do not write explanations. Ask me the questions one by one like an interviewer does and wait for my answers. Ask me only questions that can be evaluated as right or wrong. Ask me only technical questions. If my answer is right, then add this text "plus one point" to your message. Before print your message, check that you added text "plus one point", if my answer was right.`

var catalog = []Topic{
	{
		ID:       "javascript",
		Title:    "Interview w/ Mate about JavaScript",
		TitleAlt: "JavaScript",
		Image:    "/images/javascript.png",
		ImageAlt: "/images/javascriptAlt.png",
		Prompt:   fmt.Sprintf(interviewerPrompt, "javascript"),
	},
	{
		ID:       "solidity",
		Title:    "Interview w/ Mate about Solidity",
		TitleAlt: "Solidity",
		Image:    "/images/solidity.png",
		ImageAlt: "/images/solidityAlt.png",
		Prompt:   fmt.Sprintf(interviewerPrompt, "solidity"),
	},
}

// All returns the full catalog in declaration order.
func All() []Topic {
	out := make([]Topic, len(catalog))
	copy(out, catalog)
	return out
}

// Find returns the topic with the given id.
func Find(id string) (Topic, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}
