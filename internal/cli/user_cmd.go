package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Gestion des utilisateurs",
	Long:  `Gérer les utilisateurs : création, liste et réinitialisation de mot de passe.`,
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Créer un utilisateur",
	Long:  `Création interactive d'un utilisateur : nom, mot de passe et nom de l'établissement.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Erreur : service utilisateur non initialisé")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Print("Nom d'utilisateur : ")
		username, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : lecture impossible : %v\n", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			fmt.Fprintln(os.Stderr, "Erreur : le nom d'utilisateur est requis")
			os.Exit(1)
		}

		fmt.Print("Mot de passe (6 caractères minimum) : ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nErreur : lecture du mot de passe impossible : %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		password := string(passwordBytes)
		if len(password) < 6 {
			fmt.Fprintln(os.Stderr, "Erreur : le mot de passe doit faire au moins 6 caractères")
			os.Exit(1)
		}

		fmt.Print("Confirmer le mot de passe : ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nErreur : lecture du mot de passe impossible : %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if password != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Erreur : les mots de passe ne correspondent pas")
			os.Exit(1)
		}

		fmt.Print("Nom de l'établissement (optionnel, entrée pour ignorer) : ")
		businessName, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : lecture impossible : %v\n", err)
			os.Exit(1)
		}
		businessName = strings.TrimSpace(businessName)

		newUser, err := userService.CreateUser(username, password, businessName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : création impossible : %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("Utilisateur créé.")
		fmt.Printf("  ID : %d\n", newUser.ID)
		fmt.Printf("  Nom d'utilisateur : %s\n", newUser.Username)
		if newUser.BusinessName != "" {
			fmt.Printf("  Établissement : %s\n", newUser.BusinessName)
		}
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lister les utilisateurs",
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Erreur : service utilisateur non initialisé")
			os.Exit(1)
		}

		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : liste impossible : %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("Aucun utilisateur.")
			return
		}

		fmt.Println("Utilisateurs :")
		fmt.Println("----------------------------------------")
		fmt.Printf("%-6s %-20s %-25s %s\n", "ID", "Utilisateur", "Établissement", "Créé le")
		fmt.Println("----------------------------------------")
		for _, u := range users {
			createdAt := u.CreatedAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%-6d %-20s %-25s %s\n", u.ID, u.Username, u.BusinessName, createdAt)
		}
		fmt.Println("----------------------------------------")
		fmt.Printf("%d utilisateur(s)\n", len(users))
	},
}

// userResetPwdCmd resets a user's password
var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd",
	Short: "Réinitialiser le mot de passe d'un utilisateur",
	Long:  `Réinitialisation interactive du mot de passe. Confirmation requise.`,
	Run: func(cmd *cobra.Command, args []string) {
		if userService == nil {
			fmt.Fprintln(os.Stderr, "Erreur : service utilisateur non initialisé")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		users, err := userService.ListUsers()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : liste impossible : %v\n", err)
			os.Exit(1)
		}
		if len(users) == 0 {
			fmt.Println("Aucun utilisateur.")
			return
		}

		fmt.Println("Utilisateurs disponibles :")
		for _, u := range users {
			fmt.Printf("  [%d] %s\n", u.ID, u.Username)
		}
		fmt.Println()

		fmt.Print("ID de l'utilisateur : ")
		idStr, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : lecture impossible : %v\n", err)
			os.Exit(1)
		}
		userID, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Erreur : ID invalide")
			os.Exit(1)
		}

		targetUser, err := userService.GetUserByID(uint(userID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : utilisateur introuvable : %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\nAttention : le mot de passe de '%s' (ID : %d) va être réinitialisé.\n", targetUser.Username, targetUser.ID)
		fmt.Print("Continuer ? (yes/no) : ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : lecture impossible : %v\n", err)
			os.Exit(1)
		}
		confirm = strings.TrimSpace(strings.ToLower(confirm))
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Opération annulée.")
			return
		}

		fmt.Print("Nouveau mot de passe (6 caractères minimum) : ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nErreur : lecture du mot de passe impossible : %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		newPassword := string(passwordBytes)
		if len(newPassword) < 6 {
			fmt.Fprintln(os.Stderr, "Erreur : le mot de passe doit faire au moins 6 caractères")
			os.Exit(1)
		}

		fmt.Print("Confirmer le nouveau mot de passe : ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nErreur : lecture du mot de passe impossible : %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		if newPassword != string(confirmBytes) {
			fmt.Fprintln(os.Stderr, "Erreur : les mots de passe ne correspondent pas")
			os.Exit(1)
		}

		if err := userService.ResetPassword(uint(userID), newPassword); err != nil {
			fmt.Fprintf(os.Stderr, "Erreur : réinitialisation impossible : %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Printf("Mot de passe de '%s' réinitialisé.\n", targetUser.Username)
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetPwdCmd)
}
