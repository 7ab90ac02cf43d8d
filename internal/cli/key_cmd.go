package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// keyCmd represents the key command group
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Gestion de la clé API",
	Long:  `Gérer la clé API : afficher la clé courante ou la réinitialiser.`,
}

// keyShowCmd shows the current API key
var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Afficher la clé API courante",
	Run: func(cmd *cobra.Command, args []string) {
		if apiKeyManager == nil {
			fmt.Fprintln(os.Stderr, "Erreur : gestionnaire de clé API non initialisé")
			os.Exit(1)
		}

		currentKey := apiKeyManager.GetCurrentKey()
		if currentKey == "" {
			fmt.Fprintln(os.Stderr, "Erreur : impossible de lire la clé API")
			os.Exit(1)
		}

		fmt.Println("Clé API courante :")
		fmt.Println(currentKey)
	},
}

// keyResetCmd resets the API key
var keyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Réinitialiser la clé API",
	Long:  `Génère une nouvelle clé API. L'ancienne clé est invalidée. Confirmation requise.`,
	Run: func(cmd *cobra.Command, args []string) {
		if apiKeyManager == nil {
			fmt.Fprintln(os.Stderr, "Erreur : gestionnaire de clé API non initialisé")
			os.Exit(1)
		}

		oldKey := apiKeyManager.GetCurrentKey()
		fmt.Println("Clé API courante :")
		fmt.Println(oldKey)
		fmt.Println()

		fmt.Print("Attention : après réinitialisation, les clients utilisant l'ancienne clé perdront l'accès.\n")
		fmt.Print("Confirmer la réinitialisation ? (yes/no) : ")

		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : lecture impossible : %v\n", err)
			os.Exit(1)
		}

		input = strings.TrimSpace(strings.ToLower(input))
		if input != "yes" && input != "y" {
			fmt.Println("Opération annulée.")
			return
		}

		newKey, err := apiKeyManager.ResetKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : réinitialisation impossible : %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("Clé API réinitialisée.")
		fmt.Println("Nouvelle clé API :")
		fmt.Println(newKey)
	},
}

func init() {
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyResetCmd)
}
