package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shuleboard/core/chatbot"
)

func (cli *commandLine) addKnowledge(nk chatbot.NewKnowledge) error {
	if err := nk.Validate(cli.validate); err != nil {
		return err
	}
	entry, err := cli.chatbotSvc.AddKnowledge(context.Background(), nk)
	if err != nil {
		return err
	}
	fmt.Printf("knowledge entry %s added to scope %s\n", entry.ID, entry.Scope)
	return nil
}
