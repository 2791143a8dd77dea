package output

// FormatRecord returns a copy of rec prepared for a sink. Unless includeText
// is set the submitted text is dropped, so audit trails hold scores but not
// user content.
func FormatRecord(rec Record, includeText bool) Record {
	if !includeText {
		rec.Text = ""
	}
	return rec
}
