package textgen

import (
	"fmt"
	"strings"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
)

// Prompt builds the user prompt for an alert. The fixed wording avoids every
// term in the default policy lexicon.
func Prompt(a *message.Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "วิเคราะห์หุ้น %s บนกรอบเวลา %s ราคาปิด %s ปริมาณ %s. ",
		a.Symbol, a.Timeframe, a.Close.String(), a.Volume.String())
	sb.WriteString("อธิบายโครงสร้างคลื่นและแรงตลาดอย่างเป็นกลาง")
	if a.Event != "" {
		sb.WriteString("\nเหตุการณ์: " + a.Event)
	}
	if a.Hint != "" {
		sb.WriteString("\nบริบทเพิ่มเติม: " + a.Hint)
	}
	return sb.String()
}

// Template is the deterministic summary used when generation fails. It is
// built only from the alert's market fields.
func Template(a *message.Alert, disclaimer string) string {
	return fmt.Sprintf("ระบบวิเคราะห์ช้าชั่วคราว: %s %s ราคาปิด %s ปริมาณ %s. %s",
		a.Symbol, a.Timeframe, a.Close.String(), a.Volume.String(), disclaimer)
}
