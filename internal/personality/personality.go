// Package personality holds the personas the bot can impersonate and the
// alias index used to resolve @mentions.
package personality

// Personality is a configurable persona: name, prompt, and the webhook
// identity (display name + avatar) used when responding as it.
type Personality struct {
	Name         string   `json:"name"` // canonical slug, e.g. "cold-kerach-batuach"
	DisplayName  string   `json:"display_name"`
	Aliases      []string `json:"aliases,omitempty"`
	AvatarURL    string   `json:"avatar_url,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	NSFW         bool     `json:"nsfw,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"` // shown instead of a generic failure reply
}

// EffectiveDisplayName falls back to the canonical name.
func (p *Personality) EffectiveDisplayName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}
