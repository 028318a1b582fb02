package cache

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key builders. Every mutation path names the keys it invalidates through
// these so readers and writers agree on the namespace.

func UserKey(id uuid.UUID) string { return "user:" + id.String() }

func UserEmailKey(email string) string { return "user:email:" + strings.ToLower(email) }

func UserUsernameKey(username string) string { return "user:username:" + username }

const UserPagesPrefix = "users:page:"

func UserPageKey(page, size int) string { return fmt.Sprintf("%s%d:size:%d", UserPagesPrefix, page, size) }

func CustomerKey(id uuid.UUID) string { return "customer:" + id.String() }

func CustomerUserKey(userID uuid.UUID) string { return "customer:user:" + userID.String() }

const CustomerPagesPrefix = "customers:page:"

func CustomerPageKey(page, size int) string {
	return fmt.Sprintf("%s%d:size:%d", CustomerPagesPrefix, page, size)
}

func OrganizerKey(id uuid.UUID) string { return "organizer:" + id.String() }

const OrganizerPagesPrefix = "organizers:page:"

func OrganizerPageKey(page, size int) string {
	return fmt.Sprintf("%s%d:size:%d", OrganizerPagesPrefix, page, size)
}

func EventKey(id uuid.UUID) string { return "event:" + id.String() }

const EventPagesPrefix = "events:page:"

func EventPageKey(page, size int) string { return fmt.Sprintf("%s%d:size:%d", EventPagesPrefix, page, size) }

func OrganizerEventsKey(organizerID uuid.UUID) string { return "events:organizer:" + organizerID.String() }

func TicketKey(id uuid.UUID) string { return "ticket:" + id.String() }

func CustomerTicketsKey(customerID uuid.UUID) string { return "tickets:customer:" + customerID.String() }

func EventTicketsKey(eventID uuid.UUID) string { return "tickets:event:" + eventID.String() }
