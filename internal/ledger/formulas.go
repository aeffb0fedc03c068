package ledger

import "fmt"

// The SLA columns are written as live spreadsheet formulas so the remote
// sheet keeps re-evaluating as the Resolution Time and Deployment Time
// cells get filled in later. Column references: H = Reporting Date Time,
// I = Response Time, J = Resolution Time, K = Deployment Time,
// N = Resolve Time (Days) SLA, T = Urgency, U = SLA target days.

func responseSLAFormula(row int) string {
	return fmt.Sprintf(`=IF(ISBLANK(I%d), "Waiting Response", IF(H%d = I%d, 1, NETWORKDAYS(H%d, I%d) - 1))`,
		row, row, row, row, row)
}

func resolutionSLAFormula(row int) string {
	return fmt.Sprintf(`=IF(ISBLANK(J%d), "Waiting Solution", IF(H%d = J%d, 1, NETWORKDAYS(H%d, J%d) - 1))`,
		row, row, row, row, row)
}

func resolveSLAFormula(row int) string {
	return fmt.Sprintf(`=IF(AND(ISBLANK(J%d), ISBLANK(K%d)), "Waiting Solution", IF(ISBLANK(K%d), "Feedback on progress", IF(H%d = K%d, 1, NETWORKDAYS(H%d, K%d) - 1)))`,
		row, row, row, row, row, row, row)
}

func slaStatusFormula(row int) string {
	return fmt.Sprintf(`=IFS(AND(ISBLANK(J%d), ISBLANK(K%d)), "Waiting Solution", ISBLANK(K%d), "Feedback on progress", N%d <= U%d, "MEET SLA", N%d > U%d, "OVER SLA")`,
		row, row, row, row, row, row, row)
}

func slaTargetFormula(row int) string {
	return fmt.Sprintf(`=IF(T%d="High",3,IF(T%d="Medium",13,IF(T%d="Low",30,"FALSE")))`,
		row, row, row)
}
