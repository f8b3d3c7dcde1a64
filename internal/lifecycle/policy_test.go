package lifecycle

import "testing"

func TestCanEdit(t *testing.T) {
	tests := []struct {
		role   Role
		status Status
		want   bool
	}{
		{RoleSupervisor, StatusInProgress, true},
		{RoleSupervisor, StatusPending, false},
		{RolePresident, StatusPending, true},
		{RolePresident, StatusInProgress, false},
		{RoleSupervisor, StatusApproved, false},
		{RolePresident, StatusApproved, false},
		{RoleSupervisor, StatusRejected, false},
		{RolePresident, StatusRejected, false},
		{RolePreparer, StatusInProgress, false},
		{RoleAdmin, StatusPending, false},
	}
	for _, tc := range tests {
		if got := CanEdit(tc.role, tc.status); got != tc.want {
			t.Errorf("CanEdit(%s, %s) = %v, want %v", tc.role, tc.status, got, tc.want)
		}
	}
}

func TestDeriveFlags(t *testing.T) {
	pending := Letter{Status: StatusPending}
	flags := DeriveFlags(RolePresident, pending)
	if !flags.CanEdit || !flags.ShowReviewActions || !flags.ShowSignatureOptions || flags.IsTerminal {
		t.Fatalf("unexpected president flags on pending letter: %+v", flags)
	}

	flags = DeriveFlags(RoleSupervisor, pending)
	if flags.CanEdit || flags.ShowReviewActions || flags.ShowSignatureOptions {
		t.Fatalf("supervisor should not review a pending letter: %+v", flags)
	}

	rejected := Letter{Status: StatusRejected, ReasonForRejection: "late"}
	flags = DeriveFlags(RoleSupervisor, rejected)
	if !flags.ShowRejectionDetails || !flags.IsTerminal || flags.CanEdit {
		t.Fatalf("unexpected flags on rejected letter: %+v", flags)
	}

	flags = DeriveFlags(RoleSupervisor, Letter{Status: StatusRejected})
	if flags.ShowRejectionDetails {
		t.Fatal("rejection details need a reason")
	}
}

func TestMergeContentKeepsStatus(t *testing.T) {
	title := "New title"
	description := "<p>body</p>"
	letter := Letter{ID: "l-1", Title: "Old", Description: "old", Rationale: "why", Status: StatusInProgress}

	merged := MergeContent(letter, ContentPatch{Title: &title, Description: &description})
	if merged.Title != title || merged.Description != description {
		t.Fatalf("fields not merged: %+v", merged)
	}
	if merged.Rationale != "why" || merged.Status != StatusInProgress || merged.ID != "l-1" {
		t.Fatalf("unpatched fields changed: %+v", merged)
	}
	if !(ContentPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"supervisor":          RoleSupervisor,
		"UniversityPresident": RolePresident,
		" president ":         RolePresident,
		"preparer":            RolePreparer,
		"ADMIN":               RoleAdmin,
	}
	for input, want := range tests {
		got, err := ParseRole(input)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseRole("user"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestParseSignatureOption(t *testing.T) {
	tests := map[string]SignatureOption{
		"genuine":        SignatureGenuine,
		"Scanned":        SignatureScanned,
		"original":       SignatureGenuine,
		"realscan":       SignatureGenuine,
		"حقيقية":         SignatureGenuine,
		"الممسوحة ضوئيا": SignatureScanned,
	}
	for input, want := range tests {
		got, err := ParseSignatureOption(input)
		if err != nil || got != want {
			t.Errorf("ParseSignatureOption(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseSignatureOption("stamp"); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestArtifactFilename(t *testing.T) {
	tests := map[string]string{
		"https://files.example.edu/pdfs/letter-1-scanned.pdf?X-Amz-Signature=abc": "letter-1-scanned.pdf",
		"/uploads/pdfs/official_42.pdf":                                          "official_42.pdf",
		"official_42.pdf":                                                        "official_42.pdf",
		"http://localhost:3000/pdfs/%D8%AE%D8%B7%D8%A7%D8%A8.pdf":                "خطاب.pdf",
		"":                                                                       "",
	}
	for input, want := range tests {
		if got := ArtifactFilename(input); got != want {
			t.Errorf("ArtifactFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
