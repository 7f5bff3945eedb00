package session

// Prompts 自主模式使用的提示词与各类提示文本，全部可由配置覆盖
type Prompts struct {
	Greeting          string
	Kickoff           string
	Continue          string
	ActivatedNotice   string
	DeactivatedNotice string
	PendingNotice     string
	ErrorReply        string
	StartFailed       string
	RetryNotice       string
}

// DefaultPrompts 返回默认提示文本
func DefaultPrompts() Prompts {
	return Prompts{
		Greeting:          "Hello, how can I help you today?",
		Kickoff:           "You're now in autonomous mode. Please start performing interesting blockchain operations.",
		Continue:          "Continue with the next autonomous action.",
		ActivatedNotice:   "Autonomous mode activated. I will now proactively interact with the blockchain.",
		DeactivatedNotice: "Autonomous mode deactivated. I will stop performing autonomous actions.",
		PendingNotice:     "Autonomous mode deactivated. I will stop performing autonomous actions after this action is completed.",
		ErrorReply:        "Sorry, something went wrong while contacting the agent. Please try again.",
		StartFailed:       "Failed to start autonomous mode. Please try again later.",
		RetryNotice:       "The last autonomous action failed, retrying...",
	}
}

// DefaultTemplates 输入框上方的快捷提示
func DefaultTemplates() []string {
	return []string{
		"Deploy an NFT",
		"Send 0.0001 ETH to paprika.base.eth",
		"Launch a token with total supply of 1 million",
	}
}

// withDefaults 用默认值补齐空字段
func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&p.Greeting, d.Greeting)
	fill(&p.Kickoff, d.Kickoff)
	fill(&p.Continue, d.Continue)
	fill(&p.ActivatedNotice, d.ActivatedNotice)
	fill(&p.DeactivatedNotice, d.DeactivatedNotice)
	fill(&p.PendingNotice, d.PendingNotice)
	fill(&p.ErrorReply, d.ErrorReply)
	fill(&p.StartFailed, d.StartFailed)
	fill(&p.RetryNotice, d.RetryNotice)
	return p
}
