package notifications

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	TemplatePaymentReceived = "payment_received"
	TemplateDetailsReceived = "details_received"
)

type templatePair struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

const layoutHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<style>
body { background:#f5f7fb; font-family:Arial, Helvetica, sans-serif; color:#222; }
.container { max-width:640px; margin:20px auto; }
.card { background:#fff; border:1px solid #e6eef6; padding:24px; border-radius:8px; }
.btn { display:inline-block; padding:12px 20px; background:#0b74ff; color:#fff; text-decoration:none; border-radius:6px; margin-top:16px; }
</style>
</head>
<body><div class="container"><div class="card">{{template "body" .}}</div></div></body>
</html>`

var templates = map[string]templatePair{
	TemplatePaymentReceived: {
		subject: "Payment received: complete your booking",
		html: htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).New("body").Parse(`
<h2>Thank you, {{.Name}}</h2>
<p>We received your payment for booking <strong>#{{.BookingID}}</strong>.</p>
<p>Payment status: {{.PaymentStatus}}. Booking total: {{.Total}}.</p>
<p>Please add the passenger details so we can finalise your trip.</p>
<a class="btn" href="{{.CompletionURL}}" target="_blank">Complete my booking</a>
<p>The link stays valid until {{.ExpiresAt}}.</p>`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.Name}},

We received your payment for booking #{{.BookingID}}.
Payment status: {{.PaymentStatus}}. Booking total: {{.Total}}.

Please add the passenger details so we can finalise your trip:
{{.CompletionURL}}

The link stays valid until {{.ExpiresAt}}.
`)),
	},
	TemplateDetailsReceived: {
		subject: "Booking details received",
		html: htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).New("body").Parse(`
<h2>All set, {{.Name}}</h2>
<p>We have the passenger details for booking <strong>#{{.BookingID}}</strong> ({{.Passengers}} traveller(s)).</p>
<p>Payment status: {{.PaymentStatus}}. Booking total: {{.Total}}.</p>`)),
		text: texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.Name}},

We have the passenger details for booking #{{.BookingID}} ({{.Passengers}} traveller(s)).
Payment status: {{.PaymentStatus}}. Booking total: {{.Total}}.
`)),
	},
}

type templateData struct {
	Name          string
	BookingID     int64
	Total         string
	PaymentStatus string
	Passengers    int
	CompletionURL string
	ExpiresAt     string
}

func render(name string, data templateData) (subject, html, text string, err error) {
	t := templates[name]
	var hb, tb bytes.Buffer
	if err := t.html.ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", "", err
	}
	if err := t.text.Execute(&tb, data); err != nil {
		return "", "", "", err
	}
	return t.subject, hb.String(), tb.String(), nil
}
