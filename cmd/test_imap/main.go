// Diagnostic tool for IMAP connectivity. Connects to a mailbox, lists the
// most recent envelopes and exits. Useful when a customer's IMAP provider
// rejects the main import flow.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

func main() {
	host := flag.String("host", "", "IMAP server host (e.g. imap.gmail.com)")
	port := flag.Int("port", 993, "IMAP server port")
	user := flag.String("user", "", "mailbox address")
	password := flag.String("password", "", "mailbox password or app password")
	count := flag.Int("count", 5, "number of recent messages to list")
	flag.Parse()

	if *host == "" || *user == "" || *password == "" {
		log.Fatal("usage: test_imap -host imap.example.com -user me@example.com -password secret")
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	log.Printf("Connecting to %s...", addr)

	tlsConfig := &tls.Config{ServerName: *host}
	c, err := client.DialTLS(addr, tlsConfig)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Logout()
	log.Println("Connected")

	log.Printf("Logging in as %s...", *user)
	if err := c.Login(*user, *password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Println("Logged in")

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		log.Fatalf("Select INBOX failed: %v", err)
	}
	log.Printf("INBOX has %d messages", mbox.Messages)

	if mbox.Messages == 0 {
		log.Println("Mailbox is empty")
		return
	}

	from := uint32(1)
	if mbox.Messages > uint32(*count) {
		from = mbox.Messages - uint32(*count) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	log.Printf("Fetching %d most recent messages:", mbox.Messages-from+1)
	fmt.Println(strings.Repeat("-", 50))

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		fmt.Printf("Subject: %s\n", msg.Envelope.Subject)
		if len(msg.Envelope.From) > 0 {
			sender := msg.Envelope.From[0]
			fmt.Printf("From: %s <%s@%s>\n", sender.PersonalName, sender.MailboxName, sender.HostName)
		}
		fmt.Printf("Date: %s\n", msg.Envelope.Date)
		fmt.Println(strings.Repeat("-", 50))
	}

	if err := <-done; err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	log.Println("Done")
}
