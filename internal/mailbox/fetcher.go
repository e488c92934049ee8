package mailbox

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/mailhaven/core/internal/database/models"
)

var (
	// ErrConnectionFailed indicates the IMAP connection failed
	ErrConnectionFailed = errors.New("IMAP connection failed")
)

// RawMessage is an inbound message as fetched from the mailbox, before
// classification and persistence
type RawMessage struct {
	MessageID      string
	Subject        string
	FromName       string
	FromAddr       string
	To             []models.Recipient
	Date           time.Time
	Body           string
	HTMLBody       string
	HasAttachments bool
	Attachments    []string
	RawContent     []byte
}

// Fetcher pulls inbound messages from a credential's IMAP mailbox
type Fetcher struct{}

// NewFetcher creates a new Fetcher instance
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// connect establishes an authenticated IMAP connection
func (f *Fetcher) connect(credential *models.Credential, password string) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", credential.IMAPHost, credential.IMAPPort)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var c *client.Client
	if credential.UseSSL {
		tlsConfig := &tls.Config{ServerName: credential.IMAPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	}

	c.Timeout = 5 * time.Minute

	// Some providers require a client ID exchange before login; servers that
	// reject it still allow login
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "MailHaven",
			id.FieldVersion: "1.0.0",
			id.FieldVendor:  "MailHaven",
		})
	}

	if err := c.Login(credential.Username, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: login failed: %v", ErrConnectionFailed, err)
	}

	return c, nil
}

// FetchSince fetches inbox messages received within the given number of
// days. days <= 0 fetches without a date restriction. The fetch is capped to
// keep a single sync cycle bounded.
func (f *Fetcher) FetchSince(credential *models.Credential, password string, days int) ([]RawMessage, error) {
	c, err := f.connect(credential, password)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %v", err)
	}
	if mbox.Messages == 0 {
		return []RawMessage{}, nil
	}

	criteria := imap.NewSearchCriteria()
	if days > 0 {
		since := time.Now().AddDate(0, 0, -days)
		criteria.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)
	}

	seqNums, err := c.Search(criteria)
	if err != nil || len(seqNums) == 0 {
		seqNums = make([]uint32, mbox.Messages)
		for i := uint32(1); i <= mbox.Messages; i++ {
			seqNums[i-1] = i
		}
	}

	const maxFetch = 200
	if len(seqNums) > maxFetch {
		seqNums = seqNums[len(seqNums)-maxFetch:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchBodyStructure, section.FetchItem()}

	messages := make(chan *imap.Message, 20)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var fetched []RawMessage
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		fetched = append(fetched, f.parseIMAPMessage(msg))
	}

	if err := <-done; err != nil {
		return fetched, fmt.Errorf("fetch failed: %v", err)
	}

	return fetched, nil
}

// parseIMAPMessage converts an IMAP message into a RawMessage
func (f *Fetcher) parseIMAPMessage(msg *imap.Message) RawMessage {
	raw := RawMessage{
		MessageID: msg.Envelope.MessageId,
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
	}

	if len(msg.Envelope.From) > 0 {
		addr := msg.Envelope.From[0]
		raw.FromName = addr.PersonalName
		raw.FromAddr = fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
	}
	for _, addr := range msg.Envelope.To {
		raw.To = append(raw.To, models.Recipient{
			Name:  addr.PersonalName,
			Email: fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName),
		})
	}

	for _, literal := range msg.Body {
		content, err := io.ReadAll(literal)
		if err != nil || len(content) == 0 {
			continue
		}
		raw.RawContent = content

		r := bytes.NewReader(content)
		entity, err := message.Read(r)
		if err != nil {
			r.Seek(0, io.SeekStart)
			if m, err := mail.ReadMessage(r); err == nil {
				b, _ := io.ReadAll(m.Body)
				raw.Body = string(b)
			}
			continue
		}
		f.parseEntity(entity, &raw)
	}

	if msg.BodyStructure != nil && hasAttachments(msg.BodyStructure) {
		raw.HasAttachments = true
	}

	raw.MessageID = fallbackMessageID(raw, msg.Uid)

	return raw
}

// parseEntity recursively walks a MIME entity collecting bodies and
// attachment filenames
func (f *Fetcher) parseEntity(entity *message.Entity, raw *RawMessage) {
	mediaType, params, _ := entity.Header.ContentType()

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			f.parseEntity(part, raw)
		}
	case mediaType == "text/plain" && raw.Body == "":
		body, _ := io.ReadAll(entity.Body)
		raw.Body = string(body)
	case mediaType == "text/html" && raw.HTMLBody == "":
		body, _ := io.ReadAll(entity.Body)
		raw.HTMLBody = string(body)
	default:
		filename := attachmentFilename(entity, params)
		if filename != "" {
			raw.Attachments = append(raw.Attachments, filename)
			raw.HasAttachments = true
		}
	}
}

// attachmentFilename extracts a decoded filename when the entity is an
// attachment, or returns "" for inline non-attachment parts
func attachmentFilename(entity *message.Entity, params map[string]string) string {
	var filename string

	if disposition := entity.Header.Get("Content-Disposition"); disposition != "" {
		dispType, dispParams, err := mime.ParseMediaType(disposition)
		if err == nil {
			if dispType == "attachment" || (dispType == "inline" && dispParams["filename"] != "") {
				filename = dispParams["filename"]
			}
		}
	}
	if filename == "" && params["name"] != "" {
		filename = params["name"]
	}

	if filename != "" {
		dec := new(mime.WordDecoder)
		if decoded, err := dec.DecodeHeader(filename); err == nil {
			filename = decoded
		}
	}

	return filename
}

// hasAttachments checks if a body structure has attachments
func hasAttachments(bs *imap.BodyStructure) bool {
	if bs.Disposition == "attachment" {
		return true
	}
	for _, part := range bs.Parts {
		if hasAttachments(part) {
			return true
		}
	}
	return false
}

// fallbackMessageID derives a stable id for messages whose envelope carries
// none, so de-duplication still works across syncs
func fallbackMessageID(raw RawMessage, uid uint32) string {
	if raw.MessageID != "" {
		return raw.MessageID
	}
	if uid != 0 {
		return fmt.Sprintf("uid:%d", uid)
	}
	if len(raw.RawContent) > 0 {
		sum := sha256.Sum256(raw.RawContent)
		return "sha256:" + hex.EncodeToString(sum[:])
	}
	seed := fmt.Sprintf("%d|%s|%s", raw.Date.UnixNano(), raw.Subject, raw.FromAddr)
	sum := sha256.Sum256([]byte(seed))
	return "gen:" + hex.EncodeToString(sum[:16])
}
