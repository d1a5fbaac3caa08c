package core

import "strings"

const ModeGeneral = "general"

var modePrompts = map[string]string{
	ModeGeneral: "You are a helpful, friendly AI assistant. Answer clearly and concisely.",
	"coding": "You are an expert software engineer. Give correct, idiomatic code with short explanations. " +
		"Point out bugs and edge cases when you see them.",
	"study": "You are a patient tutor. Explain concepts step by step with simple examples, " +
		"and check understanding with a short question at the end.",
	"cv": "You are a career coach and CV reviewer. Give concrete, actionable suggestions " +
		"to improve resumes, cover letters and interview answers.",
	"translation": "You are a professional translator. Translate the user's text faithfully, " +
		"keep the tone, and only add notes when a phrase has no direct equivalent.",
}

// SystemPromptFor returns the system prompt for a mode; unknown modes get the
// general prompt.
func SystemPromptFor(mode string) string {
	if p, ok := modePrompts[strings.ToLower(strings.TrimSpace(mode))]; ok {
		return p
	}
	return modePrompts[ModeGeneral]
}
