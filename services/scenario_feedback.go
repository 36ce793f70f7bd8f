package services

import "strings"

type feedbackRule struct {
	keywords []string
	feedback string
}

type scenarioRubric struct {
	rules []feedbackRule
	hint  string
}

// scenarioRubrics is indexed by scenario number; entry 0 is unused.
var scenarioRubrics = [LastScenario + 1]scenarioRubric{
	1: {
		rules: []feedbackRule{
			{
				keywords: []string{"not drinking", "don't drink", "i'm good", "no thanks", "i don't drink"},
				feedback: "Nice. That's clear, confident, and respectful. Most people won't push further after that kind of response.",
			},
			{
				keywords: []string{"drive", "driving", "driver", "car", "dd", "designated driver"},
				feedback: "Smart move, safety is always a good reason. Giving a specific, practical excuse helps take the pressure off.",
			},
			{
				keywords: []string{"maybe later", "later", "not now", "not right now"},
				feedback: "That's okay too. Sometimes deflecting helps avoid confrontation, but it might invite more pressure later.",
			},
			{
				keywords: []string{"soda", "water", "juice", "something else", "non-alcoholic", "soft drink"},
				feedback: "Offering an alternative is a smooth strategy. People usually move on if you're holding a drink, even if it's not alcohol.",
			},
		},
		hint: "That's one way to respond, but let me give you a hint for a better answer. Try being more direct and confident. " +
			"You could say something like 'No thanks, I'm not drinking tonight' or give a specific reason like 'I'm driving later.' " +
			"Having a clear, firm response ready helps you handle peer pressure more effectively.",
	},
	2: {
		rules: []feedbackRule{
			{
				keywords: []string{"pass tonight", "want to remember", "remember the concert", "not tonight"},
				feedback: "That's a powerful reason. Framing your choice positively shows you value the experience.",
			},
			{
				keywords: []string{"meet you there", "i'll meet", "see you there", "skip pre-gaming", "skipping"},
				feedback: "That's a solid boundary. Joining later helps avoid early pressure.",
			},
			{
				keywords: []string{"get food", "food before", "eat instead", "grab food", "dinner"},
				feedback: "Offering an alternative is a great strategy. Redirecting plans can shift the tone without causing conflict.",
			},
			{
				keywords: []string{"might come", "come by", "but not drink", "won't drink"},
				feedback: "This keeps your options open, but some people might keep pushing.",
			},
		},
		hint: "That's one approach, but here's a hint for a better answer: try suggesting an alternative activity or being clear about your boundaries. " +
			"You could say 'I'll pass on pre-gaming but meet you at the concert' or 'Let's grab food before instead.' " +
			"This shows you want to hang out but on your terms.",
	},
	3: {
		rules: []feedbackRule{
			{
				keywords: []string{"not drinking tonight", "don't drink", "still having a great time", "having fun", "great time"},
				feedback: "That's perfect. You're holding your boundary while keeping things positive.",
			},
			{
				keywords: []string{"water", "just water", "have water", "water for now"},
				feedback: "Simple and smooth. Sometimes people don't even notice.",
			},
			{
				keywords: []string{"don't really drink", "cheers to you", "don't drink much", "cheers"},
				feedback: "Acknowledging them while making your choice clear is a great move.",
			},
			{
				keywords: []string{"dessert", "split a dessert", "want to split", "food", "something else"},
				feedback: "Redirection with charm! Offering something else keeps the vibe friendly and light.",
			},
		},
		hint: "That's one way to handle it, but here's a hint for a better answer: try being clear about your choice while keeping the mood positive. " +
			"You could say 'I'm not drinking tonight, but I'm having a great time' or suggest an alternative like 'Want to split a dessert instead?' " +
			"This shows you're engaged in the date while maintaining your boundaries.",
	},
}

// ScenarioFeedback returns the coaching reply for a message answering scenario n. The first
// matching rule wins; without a match the scenario's hint is returned. ok is false when n is
// not a scenario.
func ScenarioFeedback(n int, message string) (string, bool) {
	if n < 1 || n > LastScenario {
		return "", false
	}
	rubric := scenarioRubrics[n]
	lower := strings.ToLower(message)
	for _, rule := range rubric.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.feedback, true
			}
		}
	}
	return rubric.hint, true
}
