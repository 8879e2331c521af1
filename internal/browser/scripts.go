package browser

import "fmt"

// ButtonSelector matches everything the hosting platform renders as a button.
// Streamlit's hibernation page uses a plain <button>; keep the others for
// apps that roll their own.
const ButtonSelector = `button, [role="button"], input[type="button"], input[type="submit"]`

// worldName is the isolated world the scripts run in, so page scripts that
// patch globals cannot interfere.
const worldName = "keepalive"

// readFrameJS returns the frame's rendered text and its button labels
var readFrameJS = fmt.Sprintf(`(() => {
	const doc = document;
	const text = (doc.body && doc.body.innerText) ||
		(doc.documentElement && doc.documentElement.textContent) || "";
	const buttons = Array.from(doc.querySelectorAll(%q)).map(b =>
		(b.innerText || b.value || b.textContent || "").trim());
	return {text, buttons};
})()`, ButtonSelector)

// clickButtonJS clicks the index-th ButtonSelector match. It evaluates to
// false when that button is gone.
func clickButtonJS(index int) string {
	return fmt.Sprintf(`(() => {
	const b = document.querySelectorAll(%q)[%d];
	if (!b) return false;
	b.scrollIntoView({block: "center"});
	b.click();
	return true;
})()`, ButtonSelector, index)
}

// rawFrame is the JSON readFrameJS evaluates to
type rawFrame struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons"`
}
