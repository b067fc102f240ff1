package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/Kariqs/amexan-storefront/models"
)

type MailConfig struct {
	Address  string
	Host     string
	From     string
	Password string
	To       string
}

const orderEmailTemplate = `<h2>New order #{{.Order.ID}}</h2>
<p><b>{{.Order.CustomerName}}</b>, {{.Order.CustomerPhone}}{{if .Order.CustomerAddress}}, {{.Order.CustomerAddress}}{{end}}</p>
<table>
{{range .Order.Items}}<tr><td>{{.Title}}</td><td>{{.Quantity}} x {{money .UnitPrice}}</td></tr>
{{end}}</table>
<p>Total: <b>{{money .Order.TotalAmount}}</b></p>`

var orderEmail = template.Must(template.New("order").Funcs(template.FuncMap{"money": FormatMoney}).Parse(orderEmailTemplate))

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier emails the shop owner about every placed order.
type MailNotifier struct {
	cfg      MailConfig
	sendMail sendMailFunc
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	return &MailNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *MailNotifier) OrderPlaced(ctx context.Context, order models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("New order #%d", order.ID)
	return n.SendEmail(n.cfg.To, subject, order)
}

func (n *MailNotifier) SendEmail(emailTo string, emailSubject string, order models.Order) error {
	var body bytes.Buffer
	if err := orderEmail.Execute(&body, struct{ Order models.Order }{order}); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		n.cfg.From,
		emailTo,
		emailSubject,
		body.String(),
	)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	if err := n.sendMail(n.cfg.Address, auth, n.cfg.From, []string{emailTo}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
