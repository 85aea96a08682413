package dto

type WhatsAppSendRequest struct {
	Phone    string `json:"phone"`
	Message  string `json:"message,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type WhatsAppSendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

// WebhookEvent is the subset of a Green API notification the intake reads.
type WebhookEvent struct {
	TypeWebhook  string              `json:"typeWebhook"`
	IDMessage    string              `json:"idMessage"`
	Timestamp    int64               `json:"timestamp"`
	SenderData   WebhookSenderData   `json:"senderData"`
	MessageData  WebhookMessageData  `json:"messageData"`
	InstanceData WebhookInstanceData `json:"instanceData"`
}

type WebhookInstanceData struct {
	IDInstance int64  `json:"idInstance"`
	WID        string `json:"wid"`
}

type WebhookSenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

type WebhookMessageData struct {
	TypeMessage     string              `json:"typeMessage"`
	TextMessageData *WebhookTextData    `json:"textMessageData,omitempty"`
	FileMessageData *WebhookFileMessage `json:"fileMessageData,omitempty"`
}

type WebhookTextData struct {
	TextMessage string `json:"textMessage"`
}

type WebhookFileMessage struct {
	DownloadURL string `json:"downloadUrl"`
	Caption     string `json:"caption"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
}

type IntakeMessageResponse struct {
	ID           string `json:"id"`
	SenderChatID string `json:"sender_chat_id"`
	SenderName   string `json:"sender_name,omitempty"`
	FileName     string `json:"file_name"`
	Caption      string `json:"caption,omitempty"`
	HasFile      bool   `json:"has_file"`
	ReceivedAt   string `json:"received_at"`
}
