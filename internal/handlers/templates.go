package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
)

const layout = `{{define "layout"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="referrer" content="origin-when-cross-origin">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  {{- if .Refresh}}
  <meta http-equiv="refresh" content="1;url=/">
  {{- end}}
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.classless.purple.min.css">
  <title>{{.Title}}</title>
</head>
<body>
<header>
	<hgroup>
		<h1>{{.Title}}</h1>
	</hgroup>
</header>
<main>
	{{- range .Flashes}}
	<article class="{{.Kind}}"><strong>{{.Kind}}</strong> {{.Message}}</article>
	{{- end}}
	{{template "content" .}}
</main>
</body>
</html>
{{end}}`

const userDataBlock = `{{define "userdata"}}
	<hr>
	<h3>Your Information</h3>
	<pre><code>{{.UserData}}</code></pre>
{{end}}
{{define "token"}}{{if .Token}}
	<hr>
	<h3>Your Biscuit Token</h3>
	<pre><code>{{.Token}}</code></pre>
	<p>🔒 This token is sensitive information. Keep it secure!</p>
{{end}}{{end}}
{{define "qa"}}
	<hr>
	<h3>Private Data QA Agent</h3>
	<form action="/ask" method="post">
		<label for="question">Ask a question about your private data (e.g., 'What is my passport number?')</label>
		<textarea id="question" name="question">{{.Question}}</textarea>
		<input type="submit" value="Ask QA Agent">
	</form>
	{{- if .Answer}}
	<article class="success"><strong>Answer:</strong>
		<p>{{.Answer}}</p>
	</article>
	{{- end}}
{{end}}`

const idlePage = `{{define "content"}}
	<article>
		<p>Please authorize the application to access your data.</p>
		<p>Run the following command to get the authorization URL:</p>
		<pre><code>mighty-qa generate-url</code></pre>
		<p>or <a href="/login">authorize from this page</a>.</p>
	</article>
{{end}}`

const readyPage = `{{define "content"}}
	<article aria-busy="true">Submitting your information to the system...</article>
	{{template "userdata" .}}
	{{template "token" .}}
{{end}}`

const completePage = `{{define "content"}}
	<article class="success">✅ Agent has successfully submitted your information to the system!</article>
	<nav>
		<ul>
			{{- if .Refreshable}}
			<li><form action="/refresh" method="post"><input type="submit" value="Refresh data"></form></li>
			{{- end}}
			<li><form action="/reset" method="post"><input type="submit" value="Start over"></form></li>
		</ul>
	</nav>
	{{template "userdata" .}}
	{{template "token" .}}
	{{template "qa" .}}
{{end}}`

const directPage = `{{define "content"}}
	<hr>
	<h3>Step 1: Fetch your private data</h3>
	<form action="/fetch" method="post">
		<input type="submit" value="Fetch My Private Data">
	</form>
	{{- if .UserData}}
	<h4>Your Private Data (JSON):</h4>
	<pre><code>{{.UserData}}</code></pre>
	<hr>
	<h3>Step 2: Ask a question about your private data</h3>
	<form action="/ask" method="post">
		<label for="question">Ask a question (e.g., 'What is my passport number?')</label>
		<textarea id="question" name="question">{{.Question}}</textarea>
		<input type="submit" value="Ask QA Agent">
	</form>
	{{- if .Answer}}
	<article class="success"><strong>Answer:</strong>
		<p>{{.Answer}}</p>
	</article>
	{{- end}}
	{{- else}}
	<article>Please fetch your private data first.</article>
	{{- end}}
{{end}}`

func parse(pages ...string) *template.Template {
	t := template.Must(template.New("page").Parse(layout))
	for _, p := range pages {
		template.Must(t.Parse(p))
	}
	return t
}

var (
	idleTemplate     = parse(idlePage)
	readyTemplate    = parse(userDataBlock, readyPage)
	completeTemplate = parse(userDataBlock, completePage)
	directTemplate   = parse(directPage)
)

type flash struct {
	Kind    string
	Message string
}

type page struct {
	Title       string
	Refresh     bool
	Refreshable bool
	Flashes     []flash
	UserData    string
	Token       string
	Question    string
	Answer      string
}

func prettyJSON(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func render(w http.ResponseWriter, t *template.Template, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if err := t.ExecuteTemplate(w, "layout", p); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}
