package handlers

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "login"}}<!DOCTYPE html>
<html><head><title>Login</title></head><body>
<h1>Login</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input name="username" placeholder="Username">
<input name="password" type="password" placeholder="Password">
<button type="submit">Sign in</button>
</form>
<a href="/register">Register</a>
</body></html>{{end}}

{{define "register"}}<!DOCTYPE html>
<html><head><title>Register</title></head><body>
<h1>Register</h1>
<form id="register">
<input name="username" placeholder="Username">
<input name="email" type="email" placeholder="Email">
<input name="password" type="password" placeholder="Password">
<button type="submit">Create account</button>
</form>
<a href="/login">Login</a>
</body></html>{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html><head><title>Dashboard</title></head><body>
<h1>Welcome, {{.User}}</h1>
<a href="/logout">Logout</a>
</body></html>{{end}}

{{define "legacy_index"}}<!DOCTYPE html>
<html><head><title>Users</title></head><body>
<h1>Users</h1>
<p>POST /api/register and /api/login with a JSON body.</p>
</body></html>{{end}}

{{define "legacy_dashboard"}}<!DOCTYPE html>
<html><head><title>Dashboard</title></head><body>
<h1>Dashboard</h1>
</body></html>{{end}}
`))

type pageData struct {
	Error string
	User  string
}

func renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("page", name).Msg("Failed to render page")
	}
}
