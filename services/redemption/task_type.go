package redemption

const RedemptionNotify = "redemption:notify"

// NotifyPayload is the asynq payload for operator chat notifications. The
// email is masked before it ever leaves the service.
type NotifyPayload struct {
	RequestID      string `json:"request_id"`
	MaskedEmail    string `json:"masked_email"`
	SubscriptionID string `json:"subscription_id"`
	Duration       string `json:"duration"`
	Status         string `json:"status"`
}
