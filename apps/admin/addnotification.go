package main

import (
	"context"
	"fmt"

	"github.com/lamiedu/taarifa/core/notification"
)

// addNotification publishes one notification from the command line.
func (cli *commandLine) addNotification(role string, id int, title, message, email string) error {
	created, err := cli.notifSvc.Create(context.Background(), notification.NewNotification{
		RecipientRole: notification.Role(role),
		RecipientID:   id,
		Title:         title,
		Message:       message,
		Email:         email,
	})
	if err != nil {
		return err
	}
	fmt.Printf("notification %d created for %s:%d\n", created.ID, created.RecipientRole, created.RecipientID)
	return nil
}
