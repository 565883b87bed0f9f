package models

type transitionKey struct {
	kind   Kind
	from   Status
	action Action
}

// transitions is the complete state machine. A (kind, from, action) triple
// missing from the table is an invalid transition.
var transitions = map[transitionKey]Status{
	{KindAccountApproval, StatusPending, ActionApprove}: StatusApproved,
	{KindAccountApproval, StatusPending, ActionReject}:  StatusRejected,
	{KindAccountApproval, StatusPending, ActionCancel}:  StatusCancelled,

	{KindProfileChange, StatusPending, ActionApprove}: StatusApproved,
	{KindProfileChange, StatusPending, ActionReject}:  StatusRejected,
	{KindProfileChange, StatusPending, ActionCancel}:  StatusCancelled,

	{KindRoomBooking, StatusPending, ActionApprove}:                        StatusApprovedAwaitingPayment,
	{KindRoomBooking, StatusPending, ActionReject}:                         StatusRejected,
	{KindRoomBooking, StatusPending, ActionCancel}:                         StatusCancelled,
	{KindRoomBooking, StatusApprovedAwaitingPayment, ActionConfirmPayment}: StatusConfirmed,
	{KindRoomBooking, StatusApprovedAwaitingPayment, ActionCancel}:         StatusCancelled,
	{KindRoomBooking, StatusApprovedAwaitingPayment, ActionExpire}:         StatusRejected,
}

// Next returns the status reached by applying action to a request of kind in
// status from.
func Next(kind Kind, from Status, action Action) (Status, bool) {
	to, ok := transitions[transitionKey{kind: kind, from: from, action: action}]
	return to, ok
}
