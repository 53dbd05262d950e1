package email

const (
	subjectProgressWarningFmt   = "Handlungsbedarf: Lead %s läuft bald ab"
	subjectProtectionExpiredFmt = "Lead-Schutz abgelaufen: %s"
	subjectReminderFmt          = "Erinnerung: Lead %s ist seit 60 Tagen inaktiv"
)
