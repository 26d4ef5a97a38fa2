package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"future-you/internal/domain"
)

const previewLimit = 100

// Email — готовое к отправке письмо.
type Email struct {
	To      domain.Recipient
	Subject string
	Text    string
	HTML    string
}

var (
	readyText = texttemplate.Must(texttemplate.New("ready").Parse(`Hi {{.Name}},

A message you wrote to yourself {{.DaysAgo}} days ago is now ready to be opened.
{{if .Preview}}
Preview: "{{.Preview}}"
{{end}}
Open your message: {{.URL}}

This moment was chosen specifically for you based on your patterns and the message's context.
Take a moment to reflect on how far you've come.

- Future You Team
`))
	readyHTML = htmltemplate.Must(htmltemplate.New("ready").Parse(`<!DOCTYPE html>
<html><body>
<h1>📬 A Message From Your Past</h1>
<p>Hi {{.Name}},</p>
<p>A message you wrote to yourself <strong>{{.DaysAgo}} days ago</strong> is now ready to be opened.</p>
{{if .Preview}}<blockquote>"{{.Preview}}"</blockquote>{{end}}
<p><a href="{{.URL}}">Open Your Message</a></p>
<p>Take a moment to reflect on how far you've come since you wrote this.</p>
</body></html>
`))

	reminderText = texttemplate.Must(texttemplate.New("reminder").Parse(`Hi {{.Name}},

You have {{.Count}} from your past self ready to be opened.

Don't let these moments pass by. Your past self took the time to write to you - take a moment to read and reflect.

View your messages: {{.URL}}

- Future You Team
`))
	reminderHTML = htmltemplate.Must(htmltemplate.New("reminder").Parse(`<!DOCTYPE html>
<html><body>
<h2>💭 Messages Waiting</h2>
<p>Hi {{.Name}},</p>
<p>You have <strong>{{.Count}}</strong> from your past self ready to be opened.</p>
<p><a href="{{.URL}}">View Your Messages</a></p>
</body></html>
`))

	welcomeText = texttemplate.Must(texttemplate.New("welcome").Parse(`Hi {{.Name}},

Welcome to Future You! We're excited to help you connect with your future self.

Here's how it works:
1. Write a message to your future self
2. Choose when you want to receive it (or let us decide)
3. Receive it at the perfect moment

Get started: {{.URL}}

- Future You Team
`))
	welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome").Parse(`<!DOCTYPE html>
<html><body>
<h1>🎉 Welcome to Future You!</h1>
<p>Hi {{.Name}},</p>
<p>We're excited to help you connect with your future self through the power of time-delayed messages.</p>
<p><a href="{{.URL}}">Create Your First Message</a></p>
<p>What will you tell your future self?</p>
</body></html>
`))
)

type templateData struct {
	Name    string
	Preview string
	DaysAgo int
	Count   string
	URL     string
}

// Truncate обрезает текст до limit рун, добавляя многоточие.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// PluralMessages возвращает "1 message" или "N messages".
func PluralMessages(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}

// DaysAgo считает полные дни между created и now.
func DaysAgo(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}
	return int(now.Sub(created).Hours() / 24)
}

func render(text *texttemplate.Template, html *htmltemplate.Template, data templateData) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("text шаблон %s: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("html шаблон %s: %w", html.Name(), err)
	}
	return tb.String(), hb.String(), nil
}

// MessageReadyEmail собирает уведомление о доставленном письме.
func MessageReadyEmail(n domain.MessageReadyNotice, publicURL string, now time.Time) (Email, error) {
	data := templateData{
		Name:    n.To.Name,
		Preview: Truncate(n.Preview, previewLimit),
		DaysAgo: DaysAgo(n.CreatedAt, now),
		URL:     strings.TrimSuffix(publicURL, "/") + "/messages/" + n.MessageID.String(),
	}
	text, html, err := render(readyText, readyHTML, data)
	if err != nil {
		return Email{}, err
	}
	return Email{To: n.To, Subject: "📬 A message from your past self is waiting", Text: text, HTML: html}, nil
}

// BacklogEmail собирает ежедневное напоминание о непрочитанных письмах.
func BacklogEmail(n domain.BacklogNotice, publicURL string) (Email, error) {
	count := PluralMessages(n.Pending)
	data := templateData{Name: n.To.Name, Count: count, URL: strings.TrimSuffix(publicURL, "/") + "/messages"}
	text, html, err := render(reminderText, reminderHTML, data)
	if err != nil {
		return Email{}, err
	}
	return Email{To: n.To, Subject: fmt.Sprintf("💭 You have %s waiting", count), Text: text, HTML: html}, nil
}

// WelcomeEmail собирает приветственное письмо.
func WelcomeEmail(n domain.WelcomeNotice, publicURL string) (Email, error) {
	data := templateData{Name: n.To.Name, URL: strings.TrimSuffix(publicURL, "/") + "/messages/new"}
	text, html, err := render(welcomeText, welcomeHTML, data)
	if err != nil {
		return Email{}, err
	}
	return Email{To: n.To, Subject: "🎉 Welcome to Future You!", Text: text, HTML: html}, nil
}
