package web

import (
	"embed"
	"html/template"
)

//go:embed oauth-callback.html
var pages embed.FS

// OAuthCallback is the landing page of the ledger's OAuth redirect. It shows
// the "/start <code>" command when the bot cannot be opened by deep link, or
// the reason authorization was refused.
var OAuthCallback = template.Must(template.ParseFS(pages, "oauth-callback.html"))
