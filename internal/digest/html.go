package digest

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/reviewloop/reviewloop/internal/core"
)

var digestBodyTmpl = template.Must(template.New("digest_body").Parse(`<h2>Weekly Project Overview</h2>
<p>{{.Summary}}</p>
<ul>
  <li><strong>Security Score:</strong> {{.SecurityScore}}/100</li>
  <li><strong>Code Quality Score:</strong> {{.CodeQualityScore}}/100</li>
</ul>
<h3>Suggested Improvements</h3>
<ul>
{{- range .Improvements}}
  <li>{{.}}</li>
{{- end}}
</ul>`))

var emailTmpl = template.Must(template.New("digest_email").Parse(`<!DOCTYPE html>
<html>
  <body style="margin:0;padding:0;background-color:#f4f4f7;font-family:Arial,Helvetica,sans-serif;">
    <table width="100%" cellpadding="0" cellspacing="0">
      <tr>
        <td align="center" style="padding:24px 0;">
          <table width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;overflow:hidden;">
            <tr>
              <td style="background-color:#111827;padding:20px 32px;">
                <h1 style="color:#ffffff;font-size:20px;margin:0;">Project Updates</h1>
              </td>
            </tr>
            <tr>
              <td style="padding:32px;color:#111827;font-size:15px;line-height:1.6;">
                <h2 style="font-size:17px;margin-top:0;">Weekly Report: {{.RepoFullName}}</h2>
                {{.Body}}
              </td>
            </tr>
            <tr>
              <td style="padding:16px 32px;background-color:#f9fafb;color:#6b7280;font-size:12px;">
                You are receiving this because you are a stakeholder of {{.RepoFullName}}.
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`))

// RenderEmail produces the full HTML email for one digest. Model output
// is escaped; only the fixed layout is trusted markup.
func RenderEmail(repoFullName string, d *core.WeeklyDigest) (string, error) {
	var body bytes.Buffer
	if err := digestBodyTmpl.Execute(&body, d); err != nil {
		return "", fmt.Errorf("rendering digest body: %w", err)
	}

	var out bytes.Buffer
	err := emailTmpl.Execute(&out, struct {
		RepoFullName string
		Body         template.HTML
	}{
		RepoFullName: repoFullName,
		Body:         template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rendering digest email: %w", err)
	}
	return out.String(), nil
}
