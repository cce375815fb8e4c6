package model

import "encoding/json"

type activityAlias Activity

type activityJSON struct {
	activityAlias
	Details json.RawMessage `json:"details,omitempty"`
}

// MarshalJSON encodes the activity with its details envelope.
func (a Activity) MarshalJSON() ([]byte, error) {
	raw, err := EncodeDetails(string(a.Action), a.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(activityJSON{activityAlias: activityAlias(a), Details: raw})
}

// UnmarshalJSON decodes an activity and validates its details against the
// action kind. Payloads that fail validation are rejected.
func (a *Activity) UnmarshalJSON(b []byte) error {
	var aux activityJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := DecodeActivityDetails(aux.Action, aux.Details)
	if err != nil {
		return err
	}
	*a = Activity(aux.activityAlias)
	a.Details = d
	return nil
}

type notificationAlias Notification

type notificationJSON struct {
	notificationAlias
	Details json.RawMessage `json:"details,omitempty"`
}

// MarshalJSON encodes the notification with its details envelope.
func (n Notification) MarshalJSON() ([]byte, error) {
	raw, err := EncodeDetails(string(n.Type), n.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notificationJSON{notificationAlias: notificationAlias(n), Details: raw})
}

// UnmarshalJSON decodes a notification and validates its details against
// the notification type.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var aux notificationJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := DecodeNotificationDetails(aux.Type, aux.Details)
	if err != nil {
		return err
	}
	*n = Notification(aux.notificationAlias)
	n.Details = d
	return nil
}
