package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/quickgrade/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// sendgrid refuses messages over 30MB; attachments are sent base64 encoded
const maxAttachmentsSize = 30 << 20

var errAttachmentsTooLarge = errors.New("attachments exceed the sendgrid size limit")

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromAddress()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				svc.send(*msg)
			}
		}()
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) (*sgmail.SGMailV3, error) {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	// an address may appear only once across to, cc and bcc
	seen := make(map[string]bool)
	add := func(addrs []mail.Address, to func(...*sgmail.Email)) {
		for _, addr := range addrs {
			key := strings.ToLower(addr.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			to(sgmail.NewEmail(addr.Name, addr.Address))
		}
	}
	add(msg.To, p.AddTos)
	add(msg.Cc, p.AddCCs)
	add(msg.Bcc, p.AddBCCs)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	// sendgrid rejects empty content values, which happens when only a worksheet is mailed
	text := msg.TextContent
	if text == "" {
		text = " "
	}
	m.AddContent(sgmail.NewContent("text/plain", text))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	var size int
	for _, at := range msg.Attachments {
		size += at.Content.Len()
		if size > maxAttachmentsSize {
			return nil, errors.Wrapf(errAttachmentsTooLarge, "attaching %s", at.Filename)
		}
		m.AddAttachment(attachment(at))
	}
	return m, nil
}

func attachment(at core.Attachment) *sgmail.Attachment {
	ct := at.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return sgmail.NewAttachment().
		SetContent(at.Content.String()).
		SetType(ct).
		SetFilename(at.Filename).
		SetDisposition("attachment")
}

func (svc sendgridService) send(msg core.EmailMessage) {
	m, err := svc.prepare(msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("preparing email %q: %v", msg.Subject, err), err)
		return
	}

	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending email %q - status: %d - Body: %s", msg.Subject, res.StatusCode, res.Body))
	} else {
		svc.logger.Info(fmt.Sprintf("email %q sent with %d attachment(s)", msg.Subject, len(msg.Attachments)))
	}
}
