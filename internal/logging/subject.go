package logging

import "strings"

// FormatSubject builds the drive/job/stage subject string used in console output.
func FormatSubject(driveID, jobID, stage string) string {
	driveID = strings.TrimSpace(driveID)
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 3)
	if driveID != "" {
		var formattedDrive string
		if len(driveID) > 1 {
			formattedDrive = strings.ToUpper(driveID[:1]) + strings.ToLower(driveID[1:])
		} else {
			formattedDrive = strings.ToUpper(driveID)
		}
		parts = append(parts, formattedDrive)
	}
	switch {
	case jobID != "" && stage != "":
		parts = append(parts, "Job #"+jobID+" ("+stage+")")
	case jobID != "":
		parts = append(parts, "Job #"+jobID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
