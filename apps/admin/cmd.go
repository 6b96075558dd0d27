package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/shuleboard/core/chatbot"
	"github.com/trezcool/shuleboard/core/school"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	validate   *validator.Validate
	schoolSvc  *school.Service
	chatbotSvc *chatbot.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  addschool -code CODE -name NAME - sign a school up")
	fmt.Println("  resetpassword -code CODE - reset a school's password")
	fmt.Println("  addknowledge -pattern PATTERN -answer ANSWER [-scope SCOPE] [-keywords KW1|KW2] [-intent INTENT] [-route ROUTE] [-followup QUESTION] - curate a knowledge entry")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ContinueOnError)
	addSchoolCode := addSchoolCmd.String("code", "", "The school code, used to log in.")
	addSchoolName := addSchoolCmd.String("name", "", "The school name. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCode := resetPasswordCmd.String("code", "", "The school code. The password will be prompted next.")

	addKnowledgeCmd := flag.NewFlagSet("addknowledge", flag.ContinueOnError)
	addKnowledgeScope := addKnowledgeCmd.String("scope", chatbot.ScopeGlobal, "A school code, or GLOBAL for every school.")
	addKnowledgePattern := addKnowledgeCmd.String("pattern", "", "A typical question matched by the entry.")
	addKnowledgeKeywords := addKnowledgeCmd.String("keywords", "", "Extra keywords, separated by '|'.")
	addKnowledgeAnswer := addKnowledgeCmd.String("answer", "", "The answer given to matching questions.")
	addKnowledgeIntent := addKnowledgeCmd.String("intent", "", "The intent ID reported with the answer.")
	addKnowledgeRoute := addKnowledgeCmd.String("route", "", "The dashboard route suggested with the answer, eg. /news-create.")
	addKnowledgeFollowUp := addKnowledgeCmd.String("followup", "", "A follow-up question suggested with the answer.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSchoolCode == "" || *addSchoolName == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(*addSchoolCode, *addSchoolName, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordCode == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordCode, pwd)

	case "addknowledge":
		if err := addKnowledgeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addKnowledgePattern == "" || *addKnowledgeAnswer == "" {
			addKnowledgeCmd.Usage()
			return errHelp
		}
		return cli.addKnowledge(chatbot.NewKnowledge{
			Scope:            *addKnowledgeScope,
			QuestionPattern:  *addKnowledgePattern,
			Keywords:         chatbot.ParseKeywords(*addKnowledgeKeywords),
			AnswerText:       *addKnowledgeAnswer,
			IntentID:         *addKnowledgeIntent,
			Route:            *addKnowledgeRoute,
			FollowUpQuestion: *addKnowledgeFollowUp,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}
