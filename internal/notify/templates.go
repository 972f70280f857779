package notify

import "fmt"

// TemplateMessage builds the parent-facing letter for an alert type. Unknown
// types fall back to the general template.
func TemplateMessage(studentName string, alertType AlertType) string {
	switch alertType {
	case AlertAttendance:
		return fmt.Sprintf(`Dear Parent/Guardian,

This is an automated alert regarding %[1]s's attendance.

Our records show that %[1]s has been absent frequently and their attendance has fallen below the required threshold. Low attendance may impact their academic performance and overall development.

We recommend:
1. Discussing the importance of regular attendance with your child
2. Addressing any underlying issues causing absences
3. Contacting the school if there are ongoing concerns

Please feel free to reach out to discuss this matter further.

Best regards,
School Administration`, studentName)

	case AlertPerformance:
		return fmt.Sprintf(`Dear Parent/Guardian,

This is an alert regarding %[1]s's academic performance.

Recent assessments indicate that %[1]s may need additional support to maintain satisfactory academic progress. Early intervention can help prevent further decline in performance.

We recommend:
1. Reviewing study habits and homework completion
2. Considering additional tutoring or study support
3. Scheduling a meeting with teachers to discuss specific areas of concern

We are here to support your child's success.

Best regards,
School Administration`, studentName)

	case AlertFees:
		return fmt.Sprintf(`Dear Parent/Guardian,

This is a reminder regarding pending fee payments for %s.

Our records indicate outstanding fees that may affect your child's continued enrollment and access to school services.

Please:
1. Review your fee payment status
2. Contact the administration office for payment arrangements if needed
3. Ensure payments are made by the due date

Thank you for your prompt attention to this matter.

Best regards,
School Administration`, studentName)

	default:
		return fmt.Sprintf(`Dear Parent/Guardian,

This is an important notification regarding %[1]s.

We wanted to bring to your attention some concerns that may require your involvement to ensure your child's continued success and well-being at school.

Please contact us at your earliest convenience to discuss how we can work together to support %[1]s.

Best regards,
School Administration`, studentName)
	}
}
