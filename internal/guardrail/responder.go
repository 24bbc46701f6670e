package guardrail

import (
	"fmt"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

const (
	DefaultAssistantName = "Aria"
	DefaultProductName   = "Adhub"
)

// Responder renders canned replies for conversational intents.
type Responder struct {
	AssistantName string
	ProductName   string
}

// NewResponder creates a Responder, filling empty names with defaults.
func NewResponder(assistantName, productName string) *Responder {
	if assistantName == "" {
		assistantName = DefaultAssistantName
	}
	if productName == "" {
		productName = DefaultProductName
	}
	return &Responder{AssistantName: assistantName, ProductName: productName}
}

// TimeOfDayGreeting picks the salutation for the hour of now, in now's location.
func TimeOfDayGreeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// Respond returns the canned reply for intent, addressing displayName when set.
// IntentNone yields an empty string.
func (r *Responder) Respond(intent domain.Intent, displayName string, now time.Time) string {
	name := ""
	if displayName != "" {
		name = ", " + displayName
	}

	switch intent {
	case domain.IntentGreeting:
		return fmt.Sprintf("%s%s! I'm %s, your AI assistant for %s. I can help with campaigns, ads, billing, optimization and anything else about the platform. What would you like to know?",
			TimeOfDayGreeting(now), name, r.AssistantName, r.ProductName)
	case domain.IntentFarewell:
		return fmt.Sprintf("Goodbye%s! It was great helping you today. Come back anytime you have more questions about %s.",
			name, r.ProductName)
	case domain.IntentThanks:
		return fmt.Sprintf("You're very welcome%s! Is there anything else about %s you'd like to know?",
			name, r.ProductName)
	case domain.IntentHelp:
		return fmt.Sprintf(`I'd be happy to help%s! I'm %s, your AI assistant for %s. I can help you with:

- Campaign management: creating, optimizing and managing campaigns
- Budget and billing: budget requirements, allocation and payment options
- Ad requirements: image and video specs, content policies, creative guidelines
- Reporting and analytics: metrics, insights and performance tracking
- Account access: login, authentication and account management
- Audience targeting: demographics, interests and custom audiences

What specific area would you like help with?`, name, r.AssistantName, r.ProductName)
	default:
		return ""
	}
}
