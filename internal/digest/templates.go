// Gigwatch - Event Listings Watcher and Notifier
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gigwatch/gigwatch

package digest

import "html/template"

// Block templates for the digest body. All scraped fields pass through
// html/template so hostile markup in event names cannot leak into the
// email.
var blockTemplates = template.Must(template.New("digest").Parse(`
{{- define "greeting" -}}
Hi <b>{{.Name}}</b>,<br><br><br>
{{- end -}}

{{- define "venue" -}}
<p>New event at <b>{{.Event.Venue}}</b> named <i>{{.Event.Name}}</i> with a lineup of <b>{{.Event.Lineup}}</b> on {{.Event.Date}} has been added here: <a href="{{.Event.EventURL}}">{{.Event.EventURL}}</a><br>
{{- end -}}

{{- define "artist" -}}
<p>New event: <b>{{.Event.Artist}}</b> is playing at <b>{{.Event.Venue}}</b> on {{.Event.Date}} at the night called <i>{{.Event.Name}}</i>. Find it here: <a href="{{.Event.EventURL}}">{{.Event.EventURL}}</a><br>
{{- end -}}

{{- define "promoter" -}}
<p>New promoter <b>{{.Event.Promoter}}</b> event at <b>{{.Event.Venue}}</b> named <i>{{.Event.Name}}</i> with a lineup of <b>{{.Event.Lineup}}</b> on {{.Event.Date}} has been added here: <a href="{{.Event.EventURL}}">{{.Event.EventURL}}</a><br>
{{- end -}}

{{- define "tickets" -}}
{{- if .Tickets -}}
<b>Tickets currently on sale:</b><br>
{{- range .Tickets -}}
&nbsp;&nbsp;&nbsp;&nbsp;<u>{{.Label}}</u>: {{.Price}}<br>
{{- end -}}
{{- end -}}
<br>
{{- end -}}

{{- define "summary" -}}
<br><br>Your venues: <br><b>{{.Venues}}</b><br><br>Your promoters: <br><b>{{.Promoters}}</b><br><br>Your artists: <br><b>{{.Artists}}</b><br><br>Your new artist events locations: <br><b>{{.Locations}}</b><br><br>Thanks for supporting this tech. {{.Heart}}
{{- end -}}
`))
