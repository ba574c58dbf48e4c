package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"chat-presence/internal/service"
)

// inboundFrame es el sobre {type, data} que envia el cliente.
type inboundFrame struct {
	Type string          `json:"type" validate:"required,max=64"`
	Data json.RawMessage `json:"data"`
}

type conversationFrame struct {
	ConversationID int64 `json:"conversation_id" validate:"required,gt=0"`
}

type sendMessageFrame struct {
	ConversationID int64   `json:"conversation_id" validate:"required,gt=0"`
	Body           string  `json:"body" validate:"required,max=4000"`
	Type           string  `json:"type" validate:"omitempty,oneof=text image file"`
	AttachmentURL  *string `json:"attachment_url" validate:"omitempty,url"`
}

type userStatusFrame struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type multipleStatusFrame struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,max=200,dive,gt=0"`
}

// frameDecoder decodifica y valida el payload de cada evento entrante.
type frameDecoder struct {
	validate *validator.Validate
}

func newFrameDecoder() *frameDecoder {
	return &frameDecoder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (d *frameDecoder) envelope(raw []byte) (inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return inboundFrame{}, fmt.Errorf("%w: malformed frame", service.ErrInvalidArgument)
	}
	if err := d.validate.Struct(frame); err != nil {
		return inboundFrame{}, fmt.Errorf("%w: frame type is required", service.ErrInvalidArgument)
	}
	return frame, nil
}

func decodeData[T any](d *frameDecoder, data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 {
		return out, fmt.Errorf("%w: missing data", service.ErrInvalidArgument)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: malformed data", service.ErrInvalidArgument)
	}
	if err := d.validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %s", service.ErrInvalidArgument, validationSummary(err))
	}
	return out, nil
}

func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "invalid data"
}
