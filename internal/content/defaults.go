package content

// builtinItems is the shipped starter content, keyed by the default topic
// ids. A topic configured in content.static or content.feeds is never served
// from here, so operators can replace or blank any of it.
func builtinItems() map[string][]Item {
	return map[string][]Item{
		"cv": {
			{Title: "Fresh advances in computer vision", Link: "https://arxiv.org/list/cs.CV/recent"},
			{Title: "OpenCV 4.8 released with new features", Link: "https://opencv.org"},
		},
		"nlp": {
			{Title: "Natural language processing trends", Link: "https://huggingface.co"},
			{Title: "New transformer architectures for NLP tasks", Link: "https://arxiv.org/list/cs.CL/recent"},
		},
		"llm": {
			{Title: "Updates from the large language model world", Link: "https://openai.com"},
			{Title: "Local LLMs: new capabilities", Link: "https://github.com/topics/llm"},
		},
		"rl": {
			{Title: "Reinforcement learning in games", Link: "https://arxiv.org/list/cs.LG/recent"},
			{Title: "New RL algorithms", Link: "https://deepmind.com"},
		},
		"mlops": {
			{Title: "MLOps best practices", Link: "https://mlops.community"},
			{Title: "Tools for deploying ML models", Link: "https://github.com/topics/mlops"},
		},
	}
}
