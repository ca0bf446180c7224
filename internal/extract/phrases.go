package extract

// 行动按钮文本（多语言）。
var (
	ResetPasswordPhrases = []string{
		"Reset password",
		"Restablecer contraseña",
		"Réinitialiser le mot de passe",
		"Passwort zurücksetzen",
		"Redefinir senha",
		"Reimposta password",
		"Atur ulang sandi",
		"Şifreyi sıfırla",
	}

	HouseholdPhrases = []string{
		"Yes, this was me",
		"Get Code",
		"Dapatkan Kode",
		"Ya, Ini Aku",
		"Ya, Itu Saya",
		"Oui, c'était moi",
		"Obtenir le code",
		"Sí, la envié yo",
		"Sí, fui yo",
		"Obtener código",
		"รับรหัส",
		"ใช่แล้ว นี่คือฉัน",
	}
)

// 产品域名路径片段，用于按 href 兜底匹配。
var (
	ResetPasswordFragments = []string{"netflix.com/password"}

	HouseholdFragments = []string{
		"netflix.com/account/travel/verify",
		"netflix.com/account/update-primary-location",
		"netflix.com/account/set-primary-location",
	}
)
