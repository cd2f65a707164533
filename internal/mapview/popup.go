package mapview

import (
	"bytes"
	"html/template"

	"github.com/jengzang/civic-map/internal/models"
)

var popupTmpl = template.Must(template.New("popup").Parse(
	`<div class="report-popup">` +
		`<strong class="report-popup__category">{{.Category}}</strong>` +
		`{{if .Description}}<p class="report-popup__description">{{.Description}}</p>{{end}}` +
		`{{if .ImageURL}}<a class="report-popup__image" href="{{.ImageURL}}" target="_blank" rel="noopener">View image</a>{{end}}` +
		`<span class="report-popup__upvotes">{{.UpvoteCount}} upvotes</span>` +
		`</div>`))

// PopupHTML renders the marker popup for a report. Values are escaped, and
// image URLs with unsafe schemes are neutralized by html/template.
func PopupHTML(r models.Report) (string, error) {
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
