package notify

// Delivery is one rendered email leg of a fan-out: who gets which message.
type Delivery struct {
	Kind      string
	Recipient string
	Subject   string
	Body      string
}

// Recipients holds the business-side alert addresses. Either may be empty,
// which drops that leg.
type Recipients struct {
	Staff string
	Admin string
}

// ConfirmedDeliveries fans a confirmed reservation out to the customer plus
// the staff and admin alert addresses.
func ConfirmedDeliveries(evt ReservationEvent, rcpt Recipients) []Delivery {
	subject, body := ConfirmationEmail(evt)
	out := []Delivery{{
		Kind:      "confirmation",
		Recipient: evt.CustomerEmail,
		Subject:   subject,
		Body:      body,
	}}
	alertSubject, alertBody := ConfirmedAlertEmail(evt)
	if rcpt.Staff != "" {
		out = append(out, Delivery{Kind: "staff_alert", Recipient: rcpt.Staff, Subject: alertSubject, Body: alertBody})
	}
	if rcpt.Admin != "" {
		out = append(out, Delivery{Kind: "admin_alert", Recipient: rcpt.Admin, Subject: alertSubject, Body: alertBody})
	}
	return out
}

// AwaitingDeliveries alerts staff and admins that a pay-later booking needs a
// manual confirmation. The customer is not emailed until it is confirmed.
func AwaitingDeliveries(evt ReservationEvent, rcpt Recipients) []Delivery {
	subject, body := StaffAlertEmail(evt)
	var out []Delivery
	if rcpt.Staff != "" {
		out = append(out, Delivery{Kind: "staff_alert", Recipient: rcpt.Staff, Subject: subject, Body: body})
	}
	if rcpt.Admin != "" {
		out = append(out, Delivery{Kind: "admin_alert", Recipient: rcpt.Admin, Subject: subject, Body: body})
	}
	return out
}
