package mailquery

import "mailcode/backend/internal/domain"

// 各 Flavor 的本地化主题模板。模板按原样匹配，不做任何规范化，
// 必须与发件方实际使用的标点和空白完全一致。
var (
	resetLinkSubjects = []string{
		"Complete your password reset request",
		"Complétez votre demande de réinitialisation de mot de passe",
		"Completa tu solicitud de restablecimiento de contraseña",
		"Completa la tua richiesta di reimpostazione della password",
		"Completa sua solicitação de redefinição de senha",
		"Vervollständige deine Anfrage zum Zurücksetzen deines Passworts",
		"قم بإكمال طلب إعادة تعيين كلمة المرور الخاصة بك",
		"パスワードリセットリクエストを完了してください",
		"비밀번호 재설정 요청을 완료하세요",
		"Şifre sıfırlama isteğinizi tamamlayın",
		"Selesaikan permintaanmu untuk mengatur ulang sandi",
		"Complete su solicitud para restablecer su contraseña",
		"Réinitialisation de mot de passe à terminer",
	}

	householdSubjects = []string{
		"Important: How to update your Netflix household",
		"Your Netflix temporary access code",
		"Kode akses sementara Netflix-mu",
		"Kode akses sementaramu",
		"Penting: Cara memperbarui Rumah dengan Akun Netflix-mu",
		"Tu código de acceso temporal",
		"Tu código de acceso temporal de Netflix",
		"Importante: Cómo actualizar tu Hogar con Netflix",
		"ข้อมูลสำคัญ: วิธีอัปเดตครัวเรือน Netflix",
		"รหัสการเข้าถึงชั่วคราวของ Netflix ของคุณ",
		"Important : Comment mettre à jour votre foyer Netflix",
		"Votre code d'accès temporaire Netflix",
	}

	signInCodeSubjects = []string{
		"Your Netflix sign-in code",
		"Netflix: Your sign-in code",
		"Netflix: Ihr Login-Code",
		"Netflix: seu código de acesso",
		"Netflix : Votre code d'identification",
		"Netflix: Tu código de inicio de sesión",
		"Netflix: รหัสเข้าสู่ระบบของคุณ",
		"Netflix: Kode masukmu",
	}
)

// 默认发件域名白名单
var (
	DefaultSenderDomains     = []string{"netflix.com", "netflix.net", "netflix.app"}
	DefaultCodeSenderDomains = []string{"netflix.com"}
)

// SubjectTemplates 返回 Flavor 对应的主题模板副本；未知 Flavor 返回 nil。
func SubjectTemplates(flavor domain.Flavor) []string {
	var src []string
	switch flavor {
	case domain.FlavorResetLink:
		src = resetLinkSubjects
	case domain.FlavorHousehold:
		src = householdSubjects
	case domain.FlavorSignInCode:
		src = signInCodeSubjects
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
