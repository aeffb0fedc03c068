package ledger

import "fmt"

// Main ledger column names, in sheet order A through Z.
const (
	ColFrom              = "From"
	ColType              = "Type"
	ColNumberOfFeedback  = "Number of Feedback"
	ColProduct           = "Product"
	ColRole              = "Role"
	ColFeature           = "Modul/Fitur"
	ColReporter          = "Reporter"
	ColReportingDateTime = "Reporting Date Time"
	ColResponseTime      = "Response Time"
	ColResolutionTime    = "Resolution Time"
	ColDeploymentTime    = "Deployment Time"
	ColResponseSLA       = "Response Time (Days) SLA"
	ColResolutionSLA     = "Resolution Time (Days) SLA"
	ColResolveSLA        = "Resolve Time (Days) SLA"
	ColSLAStatusRecord   = "SLA Status Record"
	ColResponder         = "Responder"
	ColDescription       = "Deskripsi"
	ColStepReproduce     = "Step Reproduce"
	ColSeverity          = "Severity"
	ColUrgency           = "Urgency"
	ColSLA               = "SLA"
	ColAssignee          = "Assignee"
	ColStatus            = "Status"
	ColScheduledRelease  = "Scheduled Release On"
	ColLinkMessage       = "Link Message"
	ColRelatedTicket     = "Related Ticket"
)

var mainHeaders = []string{
	ColFrom,
	ColType,
	ColNumberOfFeedback,
	ColProduct,
	ColRole,
	ColFeature,
	ColReporter,
	ColReportingDateTime,
	ColResponseTime,
	ColResolutionTime,
	ColDeploymentTime,
	ColResponseSLA,
	ColResolutionSLA,
	ColResolveSLA,
	ColSLAStatusRecord,
	ColResponder,
	ColDescription,
	ColStepReproduce,
	ColSeverity,
	ColUrgency,
	ColSLA,
	ColAssignee,
	ColStatus,
	ColScheduledRelease,
	ColLinkMessage,
	ColRelatedTicket,
}

// Bug ledger column names.
const ColCode = "Code"

var bugHeaders = []string{
	ColFrom,
	ColType,
	ColCode,
	ColProduct,
	ColRole,
	ColFeature,
	ColReporter,
	ColReportingDateTime,
	ColDescription,
	ColStepReproduce,
	ColSeverity,
	ColUrgency,
	ColAssignee,
	ColStatus,
	ColScheduledRelease,
	ColLinkMessage,
	"Note",
}

// columnLetter converts a 1-based column number to its A1 letter form.
func columnLetter(n int) string {
	result := ""
	for n > 0 {
		n--
		result = string(rune('A'+n%26)) + result
		n /= 26
	}
	return result
}

func headerRange(sheet string, headers []string) string {
	last := columnLetter(len(headers))
	return fmt.Sprintf("%s!A1:%s1", sheet, last)
}

func dataRange(sheet string, headers []string) string {
	last := columnLetter(len(headers))
	return fmt.Sprintf("%s!A:%s", sheet, last)
}

func rowRange(sheet string, headers []string, row int) string {
	last := columnLetter(len(headers))
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, last, row)
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
